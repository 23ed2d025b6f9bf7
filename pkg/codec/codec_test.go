package codec_test

import (
	"testing"

	"github.com/mahi1722/ticketflow/pkg/codec"
	"github.com/mahi1722/ticketflow/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecs_RoundTrip(t *testing.T) {
	for _, c := range []codec.Codec{codec.JSON, codec.CBOR} {
		t.Run(c.Name(), func(t *testing.T) {
			state := ports.ContractState("task_codec")

			data, err := c.Marshal(state)
			require.NoError(t, err)

			decoded, err := c.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, state, decoded)
		})
	}
}

func TestCBOR_IsDeterministic(t *testing.T) {
	a, err := codec.CBOR.Marshal(ports.ContractState("task_det"))
	require.NoError(t, err)
	b, err := codec.CBOR.Marshal(ports.ContractState("task_det"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestByName(t *testing.T) {
	c, err := codec.ByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = codec.ByName("cbor")
	require.NoError(t, err)
	assert.Equal(t, "cbor", c.Name())

	_, err = codec.ByName("xml")
	assert.Error(t, err)
}
