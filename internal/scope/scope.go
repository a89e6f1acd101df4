// Package scope builds the partition keys that group documents by owning
// user and campaign in DynamoDB tables.
package scope

import (
	"fmt"
	"hash/fnv"
	"strings"
)

const sep = "#"

// Key computes the scope partition key for a document.
// With numShards=1, every document of a scope goes to shard "00".
// With numShards>1, documents are spread across shards by a hash of their id.
func Key(userAccount, campaignID, docID string, numShards int) string {
	return ShardKey(userAccount, campaignID, shardOf(docID, numShards))
}

// ShardKey returns the partition key of one shard of a scope.
func ShardKey(userAccount, campaignID string, shard int) string {
	return fmt.Sprintf("%s%s%s%s%02x", userAccount, sep, campaignID, sep, shard)
}

// Keys returns every shard key of a scope, in shard order.
func Keys(userAccount, campaignID string, numShards int) []string {
	if numShards < 1 {
		numShards = 1
	}
	keys := make([]string, numShards)
	for i := range keys {
		keys[i] = ShardKey(userAccount, campaignID, i)
	}
	return keys
}

// Split parses a scope key back into user account and campaign id.
func Split(key string) (userAccount, campaignID string, ok bool) {
	i := strings.LastIndex(key, sep)
	if i < 0 {
		return "", "", false
	}
	parts := strings.SplitN(key[:i], sep, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func shardOf(docID string, numShards int) int {
	if numShards <= 1 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(docID))
	return int(h.Sum32() % uint32(numShards))
}
