package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBinConfig(t *testing.T) {
	assert.NoError(t, ValidateBinConfig(1, 1))
	assert.NoError(t, ValidateBinConfig(500, 100))

	assert.Error(t, ValidateBinConfig(100, 0))
	assert.Error(t, ValidateBinConfig(100, 101))
	assert.Error(t, ValidateBinConfig(0, 50))
	assert.Error(t, ValidateBinConfig(-5, 50))
}

func TestBinValidateRequiresName(t *testing.T) {
	bin := Bin{Capacity: 100, Threshold: 80}
	assert.Error(t, bin.Validate())

	bin.Name = "Market Square"
	assert.NoError(t, bin.Validate())
}

func TestBinEncodeDecodeRoundTrip(t *testing.T) {
	configured := time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)
	bin := Bin{
		Serial:           "SDB-0001",
		Name:             "Market Square",
		Capacity:         120,
		Threshold:        80,
		Location:         "North Entrance",
		ImageURL:         "https://img.example/bin.png",
		SensorStatus:     "online",
		Status:           StatusAvailable,
		CreatedAt:        time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC),
		CreatedBy:        "user-1",
		LastConfigured:   &configured,
		FillLevel:        62.5,
		WasteComposition: map[string]float64{"plastic": 12.5},
		GeneralWaste:     40,
		Battery:          88,
		Connectivity:     "lte",
	}

	decoded, err := DecodeBin("SDB-0001", bin.Encode())
	require.NoError(t, err)
	assert.Equal(t, bin, decoded)
}

func TestDecodeBinFailsFastOnSchemaViolations(t *testing.T) {
	// Missing required fields.
	_, err := DecodeBin("SDB-0001", map[string]interface{}{"name": "x"})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, CollectionBins, schemaErr.Collection)
	assert.Equal(t, "SDB-0001", schemaErr.ID)

	// Wrong type for a known field.
	_, err = DecodeBin("SDB-0001", map[string]interface{}{
		"serial":    "SDB-0001",
		"name":      "x",
		"status":    StatusAvailable,
		"createdAt": "not a timestamp",
	})
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "createdAt", schemaErr.Field)
}

func TestDecodeArchivedBinRequiresArchiveFields(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	arch, err := DecodeArchivedBin("SDB-0001", map[string]interface{}{
		"serial":         "SDB-0001",
		"name":           "Market Square",
		"status":         StatusArchived,
		"reason":         "Low usage",
		"archiveReason":  "Low usage",
		"archivedAt":     now,
		"archivedBy":     "user-1",
		"archivedByName": "Olivia Operator",
	})
	require.NoError(t, err)
	assert.Equal(t, "Low usage", arch.Reason)
	assert.Nil(t, arch.RestoredAt)

	_, err = DecodeArchivedBin("SDB-0001", map[string]interface{}{
		"serial": "SDB-0001",
		"status": StatusArchived,
	})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, "archivedAt", schemaErr.Field)
}

func TestDecodeSerialReservation(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	res := SerialReservation{BinID: "SDB-0001", ReservedAt: now, Archived: true, CreatedBy: "user-1"}

	decoded, err := DecodeSerialReservation("SDB-0001", res.Encode())
	require.NoError(t, err)
	assert.Equal(t, res, decoded)

	_, err = DecodeSerialReservation("SDB-0001", map[string]interface{}{"archived": "yes"})
	assert.Error(t, err)
}
