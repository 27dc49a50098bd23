package memstore

import (
	"strconv"

	"github.com/clawdbot/sheep/pkg/kv"
)

// Key builders for the layout documented in the package comment.
// The agent prefix ("ag" + agentID) is fixed per Store instance.

func agentPrefix(agentID string) kv.Key {
	return kv.Key{"ag", agentID}
}

// AgentPrefix returns the KV key prefix scoping all of an agent's data.
// Snapshot export and import operate on this prefix.
func AgentPrefix(agentID string) kv.Key {
	return agentPrefix(agentID)
}

func (s *Store) key(parts ...string) kv.Key {
	k := make(kv.Key, 0, 2+len(parts))
	k = append(k, "ag", s.agentID)
	return append(k, parts...)
}

func (s *Store) episodeKey(id string) kv.Key  { return s.key("ep", id) }
func (s *Store) episodePrefix() kv.Key        { return s.key("ep") }
func (s *Store) factKey(id string) kv.Key     { return s.key("fact", id) }
func (s *Store) factPrefix() kv.Key           { return s.key("fact") }
func (s *Store) causalKey(id string) kv.Key   { return s.key("cl", id) }
func (s *Store) causalPrefix() kv.Key         { return s.key("cl") }
func (s *Store) procKey(id string) kv.Key     { return s.key("proc", id) }
func (s *Store) procPrefix() kv.Key           { return s.key("proc") }
func (s *Store) runKey(id string) kv.Key      { return s.key("cr", id) }
func (s *Store) runPrefix() kv.Key            { return s.key("cr") }
func (s *Store) foresightKey(id string) kv.Key { return s.key("fs", id) }
func (s *Store) foresightPrefix() kv.Key       { return s.key("fs") }
func (s *Store) prefKey(id string) kv.Key     { return s.key("pref", id) }
func (s *Store) prefPrefix() kv.Key           { return s.key("pref") }
func (s *Store) relKey(id string) kv.Key      { return s.key("rel", id) }
func (s *Store) relPrefix() kv.Key            { return s.key("rel") }
func (s *Store) coreKey(id string) kv.Key     { return s.key("cm", id) }
func (s *Store) corePrefix() kv.Key           { return s.key("cm") }
func (s *Store) profileKey() kv.Key           { return s.key("profile") }
func (s *Store) schemaKey() kv.Key            { return s.key("meta", "schema") }

// Change log: chronological under mc:{ts_ns}:{id}, plus a per-target
// reverse index mct:{targetID}:{ts_ns} whose value is the change id.
// Zero-padding the nanosecond timestamp keeps lexicographic order equal
// to chronological order.

func formatNano(ns int64) string {
	s := strconv.FormatInt(ns, 10)
	for len(s) < 19 {
		s = "0" + s
	}
	return s
}

func (s *Store) changeKey(ns int64, id string) kv.Key {
	return s.key("mc", formatNano(ns), id)
}

func (s *Store) changePrefix() kv.Key { return s.key("mc") }

func (s *Store) changeTargetKey(targetID string, ns int64) kv.Key {
	return s.key("mct", targetID, formatNano(ns))
}

func (s *Store) changeTargetPrefix(targetID string) kv.Key {
	return s.key("mct", targetID)
}

// Fact keyword index: kw:{token}:{factID} → "".

func (s *Store) kwKey(token, factID string) kv.Key {
	return s.key("kw", token, factID)
}

func (s *Store) kwTokenPrefix(token string) kv.Key {
	return s.key("kw", token)
}
