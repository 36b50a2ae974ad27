package granary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitInputRecord(t *testing.T) {
	tests := []struct {
		record string
		key    string
		value  string
	}{
		// Reducer output from an upstream job carries a tab-separated key.
		{"C2\tL1,C2,2,ARAP,40", "C2", "L1,C2,2,ARAP,40"},
		// Raw CSV input has no key.
		{"L1,C2,2,ARAP,40", "", "L1,C2,2,ARAP,40"},
		{"counter_party,tier", "", "counter_party,tier"},
		// More than one tab means the record is not key-value shaped.
		{"C2\ttier:2\textra", "", "C2\ttier:2\textra"},
		{"C4\t", "C4", ""},
		{"\ttier:9", "", "tier:9"},
		{"", "", ""},
	}

	for _, test := range tests {
		kv := splitInputRecord(test.record)
		assert.Equal(t, test.key, kv.Key, "record %q", test.record)
		assert.Equal(t, test.value, kv.Value, "record %q", test.record)
	}
}
