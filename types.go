package swarm

import (
	"encoding/hex"

	"github.com/anacrolix/swarm/internal/errorsx"
)

// InfoHash is the 20-byte SHA-1 identifier of a torrent.
type InfoHash [20]byte

// PeerID is the 20-byte identifier a participant chooses for itself.
type PeerID [20]byte

// ExtensionBits are the reserved handshake bytes carrying protocol
// extension bits (spec glossary: "extension bits").
type ExtensionBits [8]byte

func (h InfoHash) String() string { return hex.EncodeToString(h[:]) }

// parseInfoHash accepts either raw 20-byte binary or a 40-character hex
// string, matching spec §4.3 construct()'s "hex string input is decoded".
func parseInfoHash(v interface{}) (InfoHash, error) {
	var ih InfoHash
	switch x := v.(type) {
	case InfoHash:
		return x, nil
	case [20]byte:
		return InfoHash(x), nil
	case []byte:
		if len(x) != 20 {
			return ih, errorsx.Errorf("info-hash must be 20 bytes, got %d", len(x))
		}
		copy(ih[:], x)
		return ih, nil
	case string:
		if len(x) == 40 {
			if b, err := hex.DecodeString(x); err == nil {
				copy(ih[:], b)
				return ih, nil
			}
		}
		if len(x) == 20 {
			copy(ih[:], x)
			return ih, nil
		}
		return ih, errorsx.Errorf("info-hash string must be 40 hex chars or 20 raw bytes, got %d chars", len(x))
	default:
		return ih, errorsx.Errorf("unsupported info-hash type %T", v)
	}
}

// parsePeerID accepts either raw 20-byte binary or text, which is encoded
// as raw bytes (spec §4.3 construct()'s "text input is encoded as raw
// bytes").
func parsePeerID(v interface{}) (PeerID, error) {
	var id PeerID
	switch x := v.(type) {
	case PeerID:
		return x, nil
	case [20]byte:
		return PeerID(x), nil
	case []byte:
		if len(x) != 20 {
			return id, errorsx.Errorf("peer-id must be 20 bytes, got %d", len(x))
		}
		copy(id[:], x)
		return id, nil
	case string:
		if len(x) != 20 {
			return id, errorsx.Errorf("peer-id string must be 20 bytes, got %d", len(x))
		}
		copy(id[:], x)
		return id, nil
	default:
		return id, errorsx.Errorf("unsupported peer-id type %T", v)
	}
}
