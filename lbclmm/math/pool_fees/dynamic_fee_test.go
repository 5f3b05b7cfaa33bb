package pool_fees

import (
	"testing"

	"github.com/krazyTry/dlmm-go/lbclmm/shared"
)

var testParams = DynamicFeeParameters{
	FilterPeriod:             10,
	DecayPeriod:              120,
	ReductionFactor:          5000,
	VariableFeeControl:       5000,
	MaxVolatilityAccumulator: 350000,
}

func TestUpdateReferences(t *testing.T) {
	vt := shared.VolatilityTracker{
		VolatilityAccumulator: 40000,
		IDReference:           5,
		LastUpdateTimestamp:   1000,
	}

	// inside the filter period nothing moves
	UpdateReferences(&vt, testParams, 8, 1005)
	if vt.IDReference != 5 || vt.VolatilityReference != 0 {
		t.Fatalf("references changed inside filter period: %+v", vt)
	}
	if vt.LastUpdateTimestamp != 1005 {
		t.Fatalf("last update not advanced: %+v", vt)
	}

	// inside the decay period the accumulator survives scaled down
	UpdateReferences(&vt, testParams, 8, 1065)
	if vt.IDReference != 8 {
		t.Fatalf("id reference not refreshed: %+v", vt)
	}
	if vt.VolatilityReference != 20000 {
		t.Fatalf("volatility reference = %d, want 20000", vt.VolatilityReference)
	}

	// past the decay period volatility is forgotten
	vt.VolatilityAccumulator = 40000
	UpdateReferences(&vt, testParams, 9, 2000)
	if vt.VolatilityReference != 0 {
		t.Fatalf("volatility reference = %d, want 0", vt.VolatilityReference)
	}
}

func TestUpdateVolatilityAccumulator(t *testing.T) {
	vt := shared.VolatilityTracker{VolatilityReference: 20000, IDReference: 5}
	UpdateVolatilityAccumulator(&vt, testParams, 8)
	if vt.VolatilityAccumulator != 50000 {
		t.Fatalf("accumulator = %d, want 50000", vt.VolatilityAccumulator)
	}

	capped := testParams
	capped.MaxVolatilityAccumulator = 40000
	UpdateVolatilityAccumulator(&vt, capped, 8)
	if vt.VolatilityAccumulator != 40000 {
		t.Fatalf("accumulator = %d, want capped 40000", vt.VolatilityAccumulator)
	}
}

func TestGetVariableFeeNumerator(t *testing.T) {
	vt := shared.VolatilityTracker{VolatilityAccumulator: 10000}
	got := GetVariableFeeNumerator(testParams, vt, 100)
	if got.Int64() != 50000 {
		t.Fatalf("variable fee = %s, want 50000", got)
	}

	disabled := DynamicFeeParameters{}
	if got := GetVariableFeeNumerator(disabled, vt, 100); got.Sign() != 0 {
		t.Fatalf("disabled dynamic fee = %s, want 0", got)
	}
}

func TestDynamicFeeParametersValidate(t *testing.T) {
	bad := testParams
	bad.ReductionFactor = shared.BasisPointMax + 1
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for reduction factor above basis point max")
	}
	bad = testParams
	bad.FilterPeriod = bad.DecayPeriod
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for filter period >= decay period")
	}
	if err := (DynamicFeeParameters{}).Validate(); err != nil {
		t.Fatalf("zero value should validate: %v", err)
	}
	if err := testParams.Validate(); err != nil {
		t.Fatalf("default-style params should validate: %v", err)
	}
}

func TestBaseFeeNumerator(t *testing.T) {
	if got := BaseFeeNumerator(10, 100); got.Int64() != 10000 {
		t.Fatalf("base fee numerator = %s, want 10000", got)
	}
	if err := ValidateBaseFeeNumerator(BaseFeeNumerator(10, 100)); err != nil {
		t.Fatal(err)
	}
	if err := ValidateBaseFeeNumerator(BaseFeeNumerator(60000, 10000)); err == nil {
		t.Fatal("expected error above max fee numerator")
	}
}
