package budget

import (
	"strings"

	"github.com/shopspring/decimal"
)

// MeasurementType classifies a dimension row.
type MeasurementType string

const (
	MeasurementNormal      MeasurementType = "NORMAL"
	MeasurementPartial     MeasurementType = "PARCIAL"
	MeasurementAccumulated MeasurementType = "ACUMULADA"
)

// Measurement is one dimension row of a line item:
// subtotal = units × length × width × height, missing dimensions count as 1.
type Measurement struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	ConceptCode string          `json:"concept_code"`
	Comment     string          `json:"comment,omitempty"`
	Type        MeasurementType `json:"type"`

	Units  *decimal.Decimal `json:"units,omitempty"`
	Length *decimal.Decimal `json:"length,omitempty"`
	Width  *decimal.Decimal `json:"width,omitempty"`
	Height *decimal.Decimal `json:"height,omitempty"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Order    int             `json:"order"`
}

// ComputeSubtotal evaluates the dimension formula and stores the result.
func (m *Measurement) ComputeSubtotal() decimal.Decimal {
	m.Subtotal = dimOr1(m.Units).
		Mul(dimOr1(m.Length)).
		Mul(dimOr1(m.Width)).
		Mul(dimOr1(m.Height))
	return m.Subtotal
}

// Formula renders the dimension product, e.g. "5 × 10.5 × 3.2 = 168".
func (m Measurement) Formula() string {
	one := decimal.NewFromInt(1)
	var parts []string
	for _, d := range []*decimal.Decimal{m.Units, m.Length, m.Width, m.Height} {
		if d != nil && !d.Equal(one) {
			parts = append(parts, d.String())
		}
	}
	if len(parts) == 0 {
		return m.Subtotal.String()
	}
	return strings.Join(parts, " × ") + " = " + m.Subtotal.String()
}

func dimOr1(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.NewFromInt(1)
	}
	return *d
}
