package enrich

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-qualify/internal/model"
	"github.com/sells-group/lead-qualify/pkg/tracerfy"
)

func TestImportPhone(t *testing.T) {
	t.Parallel()

	ph, ok := ImportPhone("(512) 555-0142")
	require.True(t, ok)
	assert.Equal(t, "+15125550142", ph.Number)
	assert.Equal(t, model.PhoneUnknown, ph.Type)
	assert.Equal(t, model.PhoneSourceImport, ph.Source)
	assert.True(t, ph.IsPrimary)
	assert.False(t, ph.Verified)

	_, ok = ImportPhone("n/a")
	assert.False(t, ok)
}

func TestVendorPhones(t *testing.T) {
	t.Parallel()

	in := []tracerfy.Phone{
		{Number: "512-555-0100", Type: "Landline"},
		{Number: "5125550101", Type: "Mobile"},
		{Number: "(512) 555-0100", Type: "Mobile"},
		{Number: "", Type: "Mobile"},
		{Number: "5125550102", Type: "Mobile"},
	}

	t.Run("mobile first", func(t *testing.T) {
		t.Parallel()
		got := VendorPhones(in, true)
		require.Len(t, got, 3)
		assert.Equal(t, "+15125550101", got[0].Number)
		assert.Equal(t, "+15125550102", got[1].Number)
		assert.Equal(t, model.PhoneLandline, got[2].Type)
		assert.True(t, got[0].IsPrimary)
		for _, p := range got {
			assert.Equal(t, model.PhoneSourceVendor, p.Source)
			assert.True(t, p.Verified)
		}
	})

	t.Run("vendor order", func(t *testing.T) {
		t.Parallel()
		got := VendorPhones(in, false)
		require.Len(t, got, 3)
		assert.Equal(t, "+15125550100", got[0].Number)
		assert.True(t, got[0].IsPrimary)
		assert.False(t, got[1].IsPrimary)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, VendorPhones(nil, true))
	})
}

func TestMergeEmails(t *testing.T) {
	t.Parallel()
	got := MergeEmails([]string{"ann@leeplumbing.com"}, []string{"ANN@leeplumbing.com", " ", "ann.lee@gmail.com"})
	assert.Equal(t, []string{"ann@leeplumbing.com", "ann.lee@gmail.com"}, got)
}

func TestSelectPhone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		phones []model.EnrichedPhone
		want   int
	}{
		{"empty", nil, -1},
		{"primary wins", []model.EnrichedPhone{{Type: model.PhoneMobile}, {IsPrimary: true}}, 1},
		{"first mobile", []model.EnrichedPhone{{Type: model.PhoneLandline}, {Type: model.PhoneMobile}}, 1},
		{"fallback", []model.EnrichedPhone{{Type: model.PhoneLandline}, {Type: model.PhoneUnknown}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, SelectPhone(tt.phones))
		})
	}
}

func TestSplitOwnerName(t *testing.T) {
	t.Parallel()

	first, last, ok := SplitOwnerName("  Maria  De La Cruz ")
	require.True(t, ok)
	assert.Equal(t, "Maria", first)
	assert.Equal(t, "De La Cruz", last)

	_, _, ok = SplitOwnerName("Cher")
	assert.False(t, ok)
}
