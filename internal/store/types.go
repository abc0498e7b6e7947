package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Ring is an ordered list of [lon, lat] positions stored as a JSON column.
// An empty ring is stored as "[]" rather than NULL so it can be compared.
type Ring [][]float64

func (r Ring) Value() (driver.Value, error) {
	if len(r) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal([][]float64(r))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (r *Ring) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", value)
	}
	var out [][]float64
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("scan ring: %w", err)
	}
	*r = out
	return nil
}

func (r Ring) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([][]float64(r))
}

func (Ring) GormDataType() string { return "json" }

func (Ring) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// EmptyRing is the stored form of a ring with no positions.
const EmptyRing = "[]"

type RiskLevel string

const (
	RiskLow            RiskLevel = "low"
	RiskHigh           RiskLevel = "high"
	RiskMoreInfoNeeded RiskLevel = "more_info_needed"
)

// Indicator is one WHISP indicator exactly as the service returned it:
// "yes"/"no", a number, a boolean or null.
type Indicator json.RawMessage

func (i Indicator) MarshalJSON() ([]byte, error) {
	if len(i) == 0 {
		return []byte("null"), nil
	}
	return json.RawMessage(i).MarshalJSON()
}

func (i *Indicator) UnmarshalJSON(b []byte) error {
	*i = append((*i)[0:0], b...)
	return nil
}

// Bool reads the indicator as a flag. Strings "yes" and "true", non-zero
// numbers and true count as set.
func (i Indicator) Bool() bool {
	if len(i) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(i, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "yes", "true", "1":
			return true
		}
	}
	return false
}

// Analysis is the risk assessment embedded in a farm record. It is replaced
// as a whole on every analysis pass.
type Analysis struct {
	IsInProtectedAreas        Indicator `json:"is_in_protected_areas"`
	IsInWaterBody             Indicator `json:"is_in_water_body"`
	ForestChangeLossAfter2020 Indicator `json:"forest_change_loss_after_2020"`
	FireAfter2020             Indicator `json:"fire_after_2020"`
	RaddAfter2020             Indicator `json:"radd_after_2020"`
	TMFDeforestationAfter2020 Indicator `json:"tmf_deforestation_after_2020"`
	TMFDegradationAfter2020   Indicator `json:"tmf_degradation_after_2020"`
	TMFDisturbed              Indicator `json:"tmf_disturbed"`
	TreeCoverLoss             Indicator `json:"tree_cover_loss"`
	Commodities               Indicator `json:"commodities"`
	DisturbanceBefore2020     Indicator `json:"disturbance_before_2020"`
	DisturbanceAfter2020      Indicator `json:"disturbance_after_2020"`
	EUDRRiskLevel             RiskLevel `json:"eudr_risk_level"`
}
