package entrytracker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndLookup(t *testing.T) {
	tr := New()

	id, err := tr.RegisterField("kismet.device.last_time", "u64", "last time the device was seen")
	require.NoError(t, err)
	require.NotZero(t, id)

	name, ok := tr.GetFieldName(id)
	require.True(t, ok)
	require.Equal(t, "kismet.device.last_time", name)

	gotID, ok := tr.GetFieldID(name)
	require.True(t, ok)
	require.Equal(t, id, gotID)

	desc, ok := tr.GetFieldDescription(id)
	require.True(t, ok)
	require.Equal(t, "last time the device was seen", desc)
}

func TestRegisterIsIdempotent(t *testing.T) {
	tr := New()
	id1, err := tr.RegisterField("kismet.device.packets", "u64", "packet count")
	require.NoError(t, err)
	id2, err := tr.RegisterField("kismet.device.packets", "u64", "packet count (again)")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestRegisterTypeConflict(t *testing.T) {
	tr := New()
	_, err := tr.RegisterField("kismet.device.packets", "u64", "packet count")
	require.NoError(t, err)
	_, err = tr.RegisterField("kismet.device.packets", "string", "packet count as string")
	require.Error(t, err)
}

func TestFieldIDsAreDenseAndMonotonic(t *testing.T) {
	tr := New()
	var ids []FieldID
	for _, name := range []string{"a", "b", "c"} {
		id, err := tr.RegisterField(name, "string", "")
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.Equal(t, ids[0]+1, ids[1])
	require.Equal(t, ids[1]+1, ids[2])
}

func TestSerializeDispatch(t *testing.T) {
	tr := New()
	var called bool
	tr.RegisterSerializer("json", func(w, root interface{}, rename map[string]string) error {
		called = true
		return nil
	})
	err := tr.Serialize("json", nil, nil, nil)
	require.NoError(t, err)
	require.True(t, called)

	err = tr.Serialize("ek-json", nil, nil, nil)
	require.Error(t, err)
}
