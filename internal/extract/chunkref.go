package extract

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sells-group/diligence-cli/internal/model"
)

// ChunkRef is a parsed reference from an LLM response back to an evidence
// chunk. Models cite chunks in three shapes: an ordinal label ("chunk_3"),
// a prefixed id ("chunk_id_<uuid>"), or a bare uuid (sometimes truncated).
// Exactly one variant is set.
type ChunkRef struct {
	Ordinal  int    // 1-based position in the evidence list; 0 when unset
	FullID   string // complete uuid
	IDPrefix string // partial uuid, matched by prefix
}

// ParseChunkRef classifies a raw reference string. ok is false when the
// string fits none of the known shapes.
func ParseChunkRef(raw string) (ChunkRef, bool) {
	s := strings.TrimSpace(strings.ToLower(raw))
	if s == "" {
		return ChunkRef{}, false
	}

	if rest, found := strings.CutPrefix(s, "chunk_id_"); found {
		if _, err := uuid.Parse(rest); err == nil {
			return ChunkRef{FullID: rest}, true
		}
		if isHexPrefix(rest) {
			return ChunkRef{IDPrefix: rest}, true
		}
		return ChunkRef{}, false
	}

	if rest, found := strings.CutPrefix(s, "chunk_"); found {
		if n, err := strconv.Atoi(rest); err == nil && n >= 1 {
			return ChunkRef{Ordinal: n}, true
		}
		return ChunkRef{}, false
	}

	if _, err := uuid.Parse(s); err == nil {
		return ChunkRef{FullID: s}, true
	}
	if len(s) >= 8 && isHexPrefix(s) {
		return ChunkRef{IDPrefix: s}, true
	}
	return ChunkRef{}, false
}

// Resolve maps the reference to a chunk id within the evidence list given to
// the model. Returns "" when nothing matches; a prefix that matches more
// than one chunk is ambiguous and also unresolved.
func (r ChunkRef) Resolve(evidence []model.EvidenceChunk) string {
	switch {
	case r.Ordinal > 0:
		if r.Ordinal <= len(evidence) {
			return evidence[r.Ordinal-1].ID
		}
	case r.FullID != "":
		for _, c := range evidence {
			if strings.EqualFold(c.ID, r.FullID) {
				return c.ID
			}
		}
	case r.IDPrefix != "":
		var match string
		for _, c := range evidence {
			if strings.HasPrefix(strings.ToLower(c.ID), r.IDPrefix) {
				if match != "" {
					return ""
				}
				match = c.ID
			}
		}
		return match
	}
	return ""
}

func isHexPrefix(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r == '-':
		default:
			return false
		}
	}
	return len(s) > 0
}
