package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextProvider_SetGetDrop(t *testing.T) {
	p := NewContextProvider(nil)

	_, ok := p.Get("missing")
	assert.False(t, ok)

	p.Set("k", "v")
	v, ok := p.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	p.Drop("k")
	_, ok = p.Get("k")
	assert.False(t, ok)
}

func TestContextProvider_SharedEligibleWritesTriggerHook(t *testing.T) {
	p := NewContextProvider([]string{"userId"})

	var gotKey, gotValue string
	hookCalls := 0
	p.SetBroadcastHook(func(key, value string) {
		hookCalls++
		gotKey, gotValue = key, value
	})

	p.Set("scratch", "private value")
	assert.Equal(t, 0, hookCalls, "private writes must not broadcast")

	p.Set("userId", "P994E")
	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, "userId", gotKey)
	assert.Equal(t, "P994E", gotValue)

	v, ok := p.Get("userId")
	assert.True(t, ok)
	assert.Equal(t, "P994E", v)
}

func TestContextProvider_MergeSharedFirstWriteWins(t *testing.T) {
	p := NewContextProvider([]string{"userId"})
	p.Set("userId", "original")
	p.Set("scratch", "mine")

	p.MergeShared(map[string]string{
		"userId":  "overwrite attempt",
		"scratch": "overwrite attempt",
		"region":  "eu-west",
	})

	v, _ := p.Get("userId")
	assert.Equal(t, "original", v, "existing shared value must survive a merge")
	v, _ = p.Get("scratch")
	assert.Equal(t, "mine", v, "existing private value must survive a merge")
	v, ok := p.Get("region")
	assert.True(t, ok)
	assert.Equal(t, "eu-west", v)
}

func TestContextProvider_SetOverridesMergedValue(t *testing.T) {
	// A broadcast can deliver keys this agent never declared as shared
	// eligible; a later local write must win over the merged value.
	p := NewContextProvider(nil)
	p.MergeShared(map[string]string{"userId": "old"})

	p.Set("userId", "new")
	v, ok := p.Get("userId")
	require.True(t, ok)
	assert.Equal(t, "new", v)

	p.Drop("userId")
	_, ok = p.Get("userId")
	assert.False(t, ok)
}

func TestContextProvider_MergedKeysDoNotRebroadcast(t *testing.T) {
	p := NewContextProvider([]string{"userId"})
	hookCalls := 0
	p.SetBroadcastHook(func(string, string) { hookCalls++ })

	p.MergeShared(map[string]string{"userId": "P994E"})
	assert.Equal(t, 0, hookCalls, "inbound merges must never echo back out")
}
