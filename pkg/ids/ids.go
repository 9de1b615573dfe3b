// Package ids provides the identifier and hashing primitives the rest
// of the core relies on: kind-prefixed monotonic lexicographic ids,
// sha256 content hashes, and the event envelope hash.
package ids

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Kind is a short prefix identifying the entity class of an id, per §3's
// table (loop_, iter_, cand_, run_, evt_, appr_, exc_, freeze_, dec_,
// stale_, bundle_, ...).
type Kind string

const (
	KindLoop      Kind = "loop"
	KindIteration Kind = "iter"
	KindCandidate Kind = "cand"
	KindRun       Kind = "run"
	KindEvent     Kind = "evt"
	KindApproval  Kind = "appr"
	KindException Kind = "exc"
	KindFreeze    Kind = "freeze"
	KindDecision  Kind = "dec"
	KindStaleness Kind = "stale"
	KindBundle    Kind = "bundle"
	KindSuite     Kind = "suite"
	KindPlan      Kind = "plan"
	KindIntake    Kind = "intake"
	KindTemplate  Kind = "tmpl"
	KindSurface   Kind = "surf"
)

var monotonic uint64

// encoding is Crockford base32 without padding: lexicographic order of
// the encoded string matches numeric order of the encoded bytes, which
// is what makes ids generated in increasing time order sort correctly
// as strings too.
var encoding = base32.NewEncoding("0123456789ABCDEFGHJKMNPQRSTVWXYZ").WithPadding(base32.NoPadding)

// New returns a new id of the given kind: "<kind>_<26-char ulid-like>".
// The payload is a 48-bit millisecond timestamp followed by a 32-bit
// per-process monotonic counter and 48 bits of randomness, so ids
// generated later in the same process always sort after earlier ones
// even within the same millisecond.
func New(kind Kind) string {
	return fmt.Sprintf("%s_%s", kind, payload())
}

func payload() string {
	var buf [16]byte
	ms := uint64(time.Now().UnixMilli())
	buf[0] = byte(ms >> 40)
	buf[1] = byte(ms >> 32)
	buf[2] = byte(ms >> 24)
	buf[3] = byte(ms >> 16)
	buf[4] = byte(ms >> 8)
	buf[5] = byte(ms)

	seq := atomic.AddUint64(&monotonic, 1)
	binary.BigEndian.PutUint32(buf[6:10], uint32(seq))

	_, _ = rand.Read(buf[10:16])
	return encoding.EncodeToString(buf[:])
}

// ContentHashPrefix is the format prefix for all content hashes.
const ContentHashPrefix = "sha256:"

// ContentHash returns the "sha256:<64-hex>" content hash of b.
func ContentHash(b []byte) string {
	sum := sha256.Sum256(b)
	return ContentHashPrefix + hex.EncodeToString(sum[:])
}

// ValidContentHash reports whether s has the expected "sha256:<64-hex>" shape.
func ValidContentHash(s string) bool {
	if !strings.HasPrefix(s, ContentHashPrefix) {
		return false
	}
	hexPart := s[len(ContentHashPrefix):]
	if len(hexPart) != 64 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// CandidateID builds the "<producingRef>|<content_hash>|cand_<ulid>" shape
// from §3. producingRef may be empty when the candidate has no producing
// iteration (e.g. seeded/imported candidates).
func CandidateID(producingRef, contentHash string) string {
	suffix := New(KindCandidate)
	if producingRef == "" {
		return fmt.Sprintf("%s|%s", contentHash, suffix)
	}
	return fmt.Sprintf("%s|%s|%s", producingRef, contentHash, suffix)
}

// EnvelopeFields is the stable, ordered field set hashed by EnvelopeHash.
// Keeping it a plain struct (rather than hashing a map) avoids any
// ambiguity from Go map iteration order.
type EnvelopeFields struct {
	EventID       string
	StreamID      string
	StreamKind    string
	StreamSeq     int
	EventType     string
	OccurredAt    string // RFC3339, pre-formatted by the caller
	ActorKind     string
	ActorID       string
	CorrelationID string
	CausationID   string
	Supersedes    []string
	Refs          []string // pre-serialized, one entry per ref, already canonical
	PayloadHash   string   // content hash of the canonical payload bytes
}

// EnvelopeHash computes the hash over all envelope fields except the
// hash itself, per §4.1. Slice fields (Supersedes, Refs) are hashed in
// the order given, so their element order is part of the envelope's
// identity.
func EnvelopeHash(f EnvelopeFields) string {
	var sb strings.Builder
	sb.WriteString(f.EventID)
	sb.WriteByte('\x00')
	sb.WriteString(f.StreamID)
	sb.WriteByte('\x00')
	sb.WriteString(f.StreamKind)
	sb.WriteByte('\x00')
	sb.WriteString(strconv.Itoa(f.StreamSeq))
	sb.WriteByte('\x00')
	sb.WriteString(f.EventType)
	sb.WriteByte('\x00')
	sb.WriteString(f.OccurredAt)
	sb.WriteByte('\x00')
	sb.WriteString(f.ActorKind)
	sb.WriteByte('\x00')
	sb.WriteString(f.ActorID)
	sb.WriteByte('\x00')
	sb.WriteString(f.CorrelationID)
	sb.WriteByte('\x00')
	sb.WriteString(f.CausationID)
	sb.WriteByte('\x00')
	for _, s := range f.Supersedes {
		sb.WriteString(s)
		sb.WriteByte('\x01')
	}
	sb.WriteByte('\x00')
	for _, r := range f.Refs {
		sb.WriteString(r)
		sb.WriteByte('\x01')
	}
	sb.WriteByte('\x00')
	sb.WriteString(f.PayloadHash)

	return ContentHash([]byte(sb.String()))
}

// BundleHash computes H = sha256(manifest_bytes ‖ Σ sort_by_name(name ‖ blob))
// per §4.5. blobs maps artifact name to blob bytes.
func BundleHash(manifestBytes []byte, blobs map[string][]byte) string {
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	h.Write(manifestBytes)
	for _, name := range names {
		h.Write([]byte(name))
		h.Write(blobs[name])
	}
	return ContentHashPrefix + hex.EncodeToString(h.Sum(nil))
}
