package installment

import (
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessingState(t *testing.T) {
	base := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	t.Run("no installments", func(t *testing.T) {
		assert.Equal(t, types.ProcessingStatePending, ProcessingState(nil))
	})

	t.Run("latest installment failed", func(t *testing.T) {
		older := New("sub_1", base)
		older.NewDetail(true, "", base)
		latest := New("sub_1", base.AddDate(0, 1, 0))
		latest.NewDetail(false, "card declined", base.AddDate(0, 1, 0))

		assert.Equal(t, types.ProcessingStateFailed, ProcessingState([]*Installment{latest, older}))
	})

	t.Run("latest installment succeeded", func(t *testing.T) {
		older := New("sub_1", base)
		older.NewDetail(false, "card declined", base)
		latest := New("sub_1", base.AddDate(0, 1, 0))
		latest.NewDetail(false, "card declined", base.AddDate(0, 1, 0))
		latest.NewDetail(true, "", base.AddDate(0, 1, 1))

		assert.Equal(t, types.ProcessingStateSuccess, ProcessingState([]*Installment{older, latest}))
	})

	t.Run("latest installment without outcome", func(t *testing.T) {
		older := New("sub_1", base)
		older.NewDetail(true, "", base)
		latest := New("sub_1", base.AddDate(0, 1, 0))

		assert.Equal(t, types.ProcessingStatePending, ProcessingState([]*Installment{older, latest}))
	})
}

func TestInstallment_LatestDetailSameTimestamp(t *testing.T) {
	at := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	inst := New("sub_1", at)
	inst.NewDetail(false, "first", at)
	inst.NewDetail(true, "second", at)

	d := inst.LatestDetail()
	require.NotNil(t, d)
	assert.Equal(t, "second", d.Message)
	assert.Equal(t, types.ProcessingStateSuccess, inst.Status())
}

func TestInstallment_AddLineItem(t *testing.T) {
	inst := New("sub_1", time.Now())
	li := inst.AddLineItem("subli_1", "variant_1", 2)

	assert.Equal(t, inst.ID, li.InstallmentID)
	assert.Len(t, inst.LineItems, 1)
	assert.Contains(t, inst.ID, types.UUID_PREFIX_INSTALLMENT+"_")
}
