package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Bucket names group persisted records by entity.
const (
	BucketActors = "actors"
	BucketTokens = "tokens"
)

// Buckets lists the persisted bucket names in write order.
var Buckets = []string{BucketActors, BucketTokens}

// RecordKey addresses one persisted actor or token.
type RecordKey struct {
	Bucket string
	ID     string
}

// Records is a snapshot encoded as one JSON document per actor and token,
// the way the host keeps one data blob per placed unit.
type Records map[RecordKey][]byte

// EncodeRecords serializes every actor and token of the snapshot.
func EncodeRecords(snapshot Snapshot) (Records, error) {
	out := make(Records, len(snapshot.Actors)+len(snapshot.Tokens))
	for id, actor := range snapshot.Actors {
		data, err := json.Marshal(actor)
		if err != nil {
			return nil, fmt.Errorf("encode actor %s: %w", id, err)
		}
		out[RecordKey{BucketActors, id}] = data
	}
	for id, token := range snapshot.Tokens {
		data, err := json.Marshal(token)
		if err != nil {
			return nil, fmt.Errorf("encode token %s: %w", id, err)
		}
		out[RecordKey{BucketTokens, id}] = data
	}
	return out, nil
}

// DecodeRecords rebuilds a snapshot. Records in unknown buckets are ignored.
func DecodeRecords(records Records) (Snapshot, error) {
	snapshot := Snapshot{
		Actors: make(map[string]Actor),
		Tokens: make(map[string]Token),
	}
	for key, payload := range records {
		switch key.Bucket {
		case BucketActors:
			var actor Actor
			if err := json.Unmarshal(payload, &actor); err != nil {
				return Snapshot{}, fmt.Errorf("decode actor %s: %w", key.ID, err)
			}
			snapshot.Actors[key.ID] = actor
		case BucketTokens:
			var token Token
			if err := json.Unmarshal(payload, &token); err != nil {
				return Snapshot{}, fmt.Errorf("decode token %s: %w", key.ID, err)
			}
			snapshot.Tokens[key.ID] = token
		}
	}
	return snapshot, nil
}

// Diff compares the records last written (r) with next. It returns the keys
// whose payload is new or changed and the keys that disappeared, both in
// bucket write order then by id.
func (r Records) Diff(next Records) (upserts, deletes []RecordKey) {
	for key, payload := range next {
		if prev, ok := r[key]; !ok || !bytes.Equal(prev, payload) {
			upserts = append(upserts, key)
		}
	}
	for key := range r {
		if _, ok := next[key]; !ok {
			deletes = append(deletes, key)
		}
	}
	sortKeys(upserts)
	sortKeys(deletes)
	return upserts, deletes
}

func sortKeys(keys []RecordKey) {
	rank := func(bucket string) int {
		for i, b := range Buckets {
			if b == bucket {
				return i
			}
		}
		return len(Buckets)
	}
	sort.Slice(keys, func(i, j int) bool {
		if ri, rj := rank(keys[i].Bucket), rank(keys[j].Bucket); ri != rj {
			return ri < rj
		}
		return keys[i].ID < keys[j].ID
	})
}
