package budget

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConceptKind classifies a concept. The values follow the BC3/FIEBDC-3
// record taxonomy used by Spanish construction-budget software.
type ConceptKind string

const (
	KindRoot       ConceptKind = "RAIZ"
	KindChapter    ConceptKind = "CAPITULO"
	KindSubchapter ConceptKind = "SUBCAPITULO"
	KindLineItem   ConceptKind = "PARTIDA"
	KindBreakdown  ConceptKind = "DESCOMPUESTO"
	KindLabor      ConceptKind = "MANO_OBRA"
	KindMaterial   ConceptKind = "MATERIAL"
	KindMachinery  ConceptKind = "MAQUINARIA"
	KindAuxiliary  ConceptKind = "AUXILIAR"
)

// Valid reports whether k is a known kind.
func (k ConceptKind) Valid() bool {
	switch k {
	case KindRoot, KindChapter, KindSubchapter, KindLineItem, KindBreakdown,
		KindLabor, KindMaterial, KindMachinery, KindAuxiliary:
		return true
	}
	return false
}

// IsContainer reports whether k aggregates children and carries a declared
// total sourced from the original document.
func (k ConceptKind) IsContainer() bool {
	return k == KindRoot || k == KindChapter || k == KindSubchapter
}

// IsPriced reports whether k carries unit price / quantity data of its own.
func (k ConceptKind) IsPriced() bool {
	switch k {
	case KindLineItem, KindBreakdown, KindLabor, KindMaterial, KindMachinery, KindAuxiliary:
		return true
	}
	return false
}

// IsMeasurable reports whether dimension measurements may be attached.
func (k ConceptKind) IsMeasurable() bool {
	return k == KindLineItem
}

// IsDecomposable reports whether k may own breakdown children.
func (k ConceptKind) IsDecomposable() bool {
	return k == KindLineItem || k == KindBreakdown
}

// Concept is a reusable priced record, keyed by code within its project.
// It holds the DATA of a budget element; its position(s) in the hierarchy
// live in Node rows that reference it by code.
type Concept struct {
	ProjectID string      `json:"project_id"`
	Code      string      `json:"code"`
	Kind      ConceptKind `json:"kind"`

	Name        string `json:"name,omitempty"`
	Summary     string `json:"summary,omitempty"`
	Description string `json:"description,omitempty"`

	Unit      string           `json:"unit,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`

	// Container kinds: total read from the source document vs the
	// bottom-up total cached by the aggregation engine (may be stale).
	DeclaredTotal *decimal.Decimal `json:"declared_total,omitempty"`
	ComputedTotal *decimal.Decimal `json:"computed_total,omitempty"`

	// Line-item kinds: accumulated measurement quantity and amount.
	AccumQuantity *decimal.Decimal `json:"accum_quantity,omitempty"`
	AccumAmount   *decimal.Decimal `json:"accum_amount,omitempty"`

	HasMeasurements bool `json:"has_measurements,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Node is one position of one concept within a project's tree. The node
// holds only STRUCTURE: parent link, depth, sibling order and the quantity
// multiplier applied when aggregating into the parent.
type Node struct {
	ID          string  `json:"id"`
	ProjectID   string  `json:"project_id"`
	ParentID    *string `json:"parent_id,omitempty"` // nil = root
	ConceptCode string  `json:"concept_code"`

	Depth    int             `json:"depth"` // root = 0
	Order    int             `json:"order"` // distinct among siblings
	Quantity decimal.Decimal `json:"quantity"`
}

// IsRoot reports whether the node has no parent.
func (n Node) IsRoot() bool { return n.ParentID == nil }

// Project is the owning unit for one budget: its tree, its concepts and
// its measurements live and die together.
type Project struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Source document metadata, set by ingestion.
	DocumentName string `json:"document_name,omitempty"`
	DocumentHash string `json:"document_hash,omitempty"`
	PageCount    int    `json:"page_count,omitempty"`
	Layout       string `json:"layout,omitempty"`

	Phase  int    `json:"phase"`
	Status string `json:"status"`

	DeclaredTotal *decimal.Decimal `json:"declared_total,omitempty"`
	ComputedTotal *decimal.Decimal `json:"computed_total,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Project status values.
const (
	StatusDraft      = "draft"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// TreeRow is one entry of the full-tree listing: a node joined with its
// concept data, in depth-first order.
type TreeRow struct {
	NodeID      string  `json:"node_id"`
	ParentID    *string `json:"parent_id,omitempty"`
	ConceptCode string  `json:"concept_code"`
	Depth       int     `json:"depth"`
	Order       int     `json:"order"`

	Quantity decimal.Decimal `json:"quantity"`

	Kind    ConceptKind `json:"kind,omitempty"`
	Name    string      `json:"name,omitempty"`
	Summary string      `json:"summary,omitempty"`
	Unit    string      `json:"unit,omitempty"`

	UnitPrice     *decimal.Decimal `json:"unit_price,omitempty"`
	DeclaredTotal *decimal.Decimal `json:"declared_total,omitempty"`

	// Quantity × unit price for this position (zero when unpriced).
	Amount decimal.Decimal `json:"amount"`
}

// Usage is one position of a concept in the tree, with the chain of
// concept codes from the root down to the referencing node.
type Usage struct {
	NodeID string   `json:"node_id"`
	Depth  int      `json:"depth"`
	Path   []string `json:"path"`
}

// Stats summarizes a project's tree.
type Stats struct {
	Chapters    int `json:"chapters"`
	Subchapters int `json:"subchapters"`
	LineItems   int `json:"line_items"`
	Breakdowns  int `json:"breakdowns"`
	MaxDepth    int `json:"max_depth"`
	TotalNodes  int `json:"total_nodes"`
}

// Problem is one tree-integrity finding.
type Problem struct {
	Type        string `json:"type"` // "orphan_node" | "missing_concept"
	NodeID      string `json:"node_id"`
	ConceptCode string `json:"concept_code"`
	ParentID    string `json:"parent_id,omitempty"`
}

// Warning is a non-fatal aggregation finding, reported alongside the
// computed total rather than aborting it.
type Warning struct {
	NodeID      string `json:"node_id"`
	ConceptCode string `json:"concept_code"`
	Reason      string `json:"reason"`
}

// WarnZeroContribution marks a leaf that contributed 0 to its parent
// because it lacks price/quantity data.
const WarnZeroContribution = "zero_contribution"

// Discrepancy is a mismatch between a container's declared total and the
// total computed bottom-up from its subtree. Ephemeral: recomputed on
// demand, never persisted.
type Discrepancy struct {
	NodeID      string      `json:"node_id"`
	ConceptCode string      `json:"concept_code"`
	Kind        ConceptKind `json:"kind"`
	Name        string      `json:"name,omitempty"`

	Declared   decimal.Decimal `json:"declared"`
	Computed   decimal.Decimal `json:"computed"`
	Difference decimal.Decimal `json:"difference"` // declared - computed
}
