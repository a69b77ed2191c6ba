package adapters

import (
	"testing"
	"time"

	"shipping-gateway/internal/features/tracking/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestParseKurirLokalTimeline_Success verifies mapping of a delivered timeline.
func TestParseKurirLokalTimeline_Success(t *testing.T) {
	body := []byte(`{
    "resi": "KL-88231",
    "history": [
        {
            "status": "Paket Dijemput",
            "deskripsi": "Paket dijemput kurir",
            "kota": "Jakarta Selatan",
            "waktu": "2026-01-28 10:50"
        },
        {
            "status": "Paket Terkirim",
            "deskripsi": "Paket diterima oleh penerima",
            "kota": "Bandung",
            "waktu": "2026-01-29 14:03"
        }
    ]
}`)

	snapshot, err := parseKurirLokalTimeline("KL-88231", body, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, "KL-88231", snapshot.Ref.TrackingNumber)
	require.Len(t, snapshot.Events, 2)

	assert.Equal(t, domain.StatusPickedUp, snapshot.Events[0].Status)
	assert.False(t, snapshot.Events[0].Unmapped)
	assert.Equal(t, "Jakarta Selatan", snapshot.Events[0].City)

	assert.Equal(t, domain.StatusDelivered, snapshot.Events[1].Status)
	assert.Equal(t, "Paket diterima oleh penerima", snapshot.Events[1].Description)
}

// TestParseKurirLokalTimeline_EventTimesUseJakartaOffset verifies the page's
// local timestamps carry the WIB offset.
func TestParseKurirLokalTimeline_EventTimesUseJakartaOffset(t *testing.T) {
	body := []byte(`{
    "history": [
        {
            "status": "Dalam Perjalanan",
            "deskripsi": "Menuju gudang transit",
            "kota": "Cikarang",
            "waktu": "2026-01-28 07:00"
        }
    ]
}`)

	snapshot, err := parseKurirLokalTimeline("KL-1", body, zap.NewNop())

	require.NoError(t, err)
	require.Len(t, snapshot.Events, 1)
	want := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	assert.True(t, snapshot.Events[0].EventTime.Equal(want))
}

// TestParseKurirLokalTimeline_UnknownStatusBucketed verifies an unknown page
// status is kept as IN_TRANSIT and flagged rather than dropped.
func TestParseKurirLokalTimeline_UnknownStatusBucketed(t *testing.T) {
	body := []byte(`{
    "history": [
        {
            "status": "Sedang Diproses Khusus",
            "deskripsi": "Penanganan khusus di gudang",
            "kota": "Surabaya",
            "waktu": "2026-02-01 09:15"
        }
    ]
}`)

	snapshot, err := parseKurirLokalTimeline("KL-2", body, zap.NewNop())

	require.NoError(t, err)
	require.Len(t, snapshot.Events, 1)
	assert.Equal(t, domain.StatusInTransit, snapshot.Events[0].Status)
	assert.True(t, snapshot.Events[0].Unmapped)
	assert.Equal(t, "Sedang Diproses Khusus", snapshot.Events[0].ProviderStatus)
}

// TestParseKurirLokalTimeline_BadJSON verifies a parse error is surfaced.
func TestParseKurirLokalTimeline_BadJSON(t *testing.T) {
	_, err := parseKurirLokalTimeline("KL-3", []byte("<html>"), zap.NewNop())
	assert.Error(t, err)
}
