package numerator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInvoiceConfig_KeyAndFormat(t *testing.T) {
	cfg := InvoiceConfig()
	period := time.Date(2025, time.March, 14, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "invoice-2025", cfg.Key(period))
	assert.Equal(t, "FAC-2025-000001", cfg.Format(period, 1))
	assert.Equal(t, "FAC-2025-123456", cfg.Format(period, 123456))
	assert.Equal(t, "FAC-2025-1234567", cfg.Format(period, 1234567))
	assert.NoError(t, cfg.Validate())
}

func TestConfig_NeverReset(t *testing.T) {
	cfg := Config{Scope: "receipt", Prefix: "REC", PadWidth: 4, ResetPeriod: ResetNever}
	period := time.Date(2031, time.January, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "receipt", cfg.Key(period))
	assert.Equal(t, "REC-0042", cfg.Format(period, 42))
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, int64(42), ParseNumber("FAC-2025-000042"))
	assert.Equal(t, int64(7), ParseNumber("REC-0007"))
	assert.Equal(t, int64(-1), ParseNumber("garbage"))
}
