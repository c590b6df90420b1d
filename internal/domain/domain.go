package domain

// Standard identifies the management standard a record belongs to.
const StandardISO9001 = "ISO_9001"

// Process types.
const (
	ProcessManagement  = "management"
	ProcessOperational = "operational"
	ProcessSupport     = "support"
)

// EligibilityLeadership is a catalog-only eligibility value; management
// processes satisfy it.
const EligibilityLeadership = "leadership"

// Lifecycle statuses shared by processes and documents.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

type Activity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Sequence    int    `json:"sequence"`
}

type Regulation struct {
	ID                    string `json:"id"`
	Reference             string `json:"reference"`
	Name                  string `json:"name"`
	ComplianceDisposition string `json:"compliance_disposition,omitempty"`
}

type Process struct {
	ID           string       `json:"id"`
	Code         string       `json:"code"`
	Name         string       `json:"name"`
	Type         string       `json:"type" enum:"management,operational,support"`
	Purpose      string       `json:"purpose"`
	Inputs       []string     `json:"inputs"`
	Outputs      []string     `json:"outputs"`
	PilotName    string       `json:"pilot_name,omitempty"`
	Activities   []Activity   `json:"activities,omitempty"`
	Regulations  []Regulation `json:"regulations,omitempty"`
	Status       string       `json:"status" enum:"draft,active,archived"`
	Standard     string       `json:"standard"`
	Version      int          `json:"version"`
	RevisionDate string       `json:"revision_date" format:"date-time"`
	RevisionNote string       `json:"revision_note,omitempty"`
	RiskIDs      []string     `json:"risk_ids"`
	ActionIDs    []string     `json:"action_ids"`
	IndicatorIDs []string     `json:"indicator_ids"`
	CreatedAt    string       `json:"created_at" format:"date-time"`
	UpdatedAt    string       `json:"updated_at" format:"date-time"`
}

// ProcessPatch carries the fields of a partial process update; nil fields are
// left untouched.
type ProcessPatch struct {
	Name         *string
	Type         *string
	Purpose      *string
	Inputs       []string
	Outputs      []string
	PilotName    *string
	Activities   []Activity
	Regulations  []Regulation
	Status       *string
	RiskIDs      []string
	ActionIDs    []string
	IndicatorIDs []string
}

// Issue types and SWOT quadrants.
const (
	IssueRisk        = "risk"
	IssueOpportunity = "opportunity"

	QuadrantStrength    = "strength"
	QuadrantWeakness    = "weakness"
	QuadrantOpportunity = "opportunity"
	QuadrantThreat      = "threat"

	OriginInternal = "internal"
	OriginExternal = "external"
)

type ContextIssue struct {
	ID           string `json:"id"`
	ProcessID    string `json:"process_id"`
	Type         string `json:"type" enum:"risk,opportunity"`
	Quadrant     string `json:"quadrant" enum:"strength,weakness,opportunity,threat"`
	Description  string `json:"description"`
	Origin       string `json:"origin" enum:"internal,external"`
	Severity     *int   `json:"severity,omitempty" minimum:"1" maximum:"5"`
	Probability  *int   `json:"probability,omitempty" minimum:"1" maximum:"5"`
	Criticality  *int   `json:"criticality,omitempty"`
	Version      int    `json:"version"`
	RevisionDate string `json:"revision_date" format:"date-time"`
	RevisionNote string `json:"revision_note,omitempty"`
	CreatedAt    string `json:"created_at" format:"date-time"`
	UpdatedAt    string `json:"updated_at" format:"date-time"`
}

type IssuePatch struct {
	ProcessID   *string
	Quadrant    *string
	Description *string
	Origin      *string
	Severity    *int
	Probability *int
}

// TypeForQuadrant maps a SWOT quadrant onto its issue type.
func TypeForQuadrant(quadrant string) string {
	switch quadrant {
	case QuadrantWeakness, QuadrantThreat:
		return IssueRisk
	default:
		return IssueOpportunity
	}
}

// Action statuses and source kinds.
const (
	ActionPlanned    = "planned"
	ActionInProgress = "in_progress"
	ActionCompleted  = "completed"
	ActionCancelled  = "cancelled"

	SourceIssue    = "issue"
	SourceFunction = "function"
	SourceAudit    = "audit"
	SourceOther    = "other"
)

type Action struct {
	ID              string  `json:"id"`
	ProcessID       string  `json:"process_id"`
	Title           string  `json:"title,omitempty"`
	Description     string  `json:"description"`
	SourceType      string  `json:"source_type,omitempty" enum:"issue,function,audit,other"`
	SourceID        string  `json:"source_id,omitempty"`
	ResponsibleName string  `json:"responsible_name,omitempty"`
	Status          string  `json:"status" enum:"planned,in_progress,completed,cancelled"`
	DueDate         *string `json:"due_date,omitempty" format:"date-time"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
	Version         int     `json:"version"`
	RevisionDate    string  `json:"revision_date" format:"date-time"`
	RevisionNote    string  `json:"revision_note,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`
}

type ActionPatch struct {
	ProcessID       *string
	Title           *string
	Description     *string
	SourceType      *string
	SourceID        *string
	ResponsibleName *string
	Status          *string
	// DueDate set to a pointer to "" clears the due date.
	DueDate *string
}

// IsClosed reports whether the action status is terminal.
func (a Action) IsClosed() bool {
	return a.Status == ActionCompleted || a.Status == ActionCancelled
}

// Document types.
const (
	DocProcedure   = "procedure"
	DocForm        = "form"
	DocInstruction = "instruction"
	DocRecord      = "record"
	DocPolicy      = "policy"
)

type ClauseReference struct {
	ClauseNumber string `json:"clause_number" yaml:"clause_number"`
	ClauseTitle  string `json:"clause_title" yaml:"clause_title"`
}

type Document struct {
	ID                  string            `json:"id"`
	Code                string            `json:"code"`
	Title               string            `json:"title"`
	Type                string            `json:"type" enum:"procedure,form,instruction,record,policy"`
	Description         string            `json:"description,omitempty"`
	ProcessIDs          []string          `json:"process_ids"`
	ISOClauseReferences []ClauseReference `json:"iso_clause_references"`
	Status              string            `json:"status" enum:"draft,active,archived"`
	Version             int               `json:"version"`
	RevisionDate        string            `json:"revision_date" format:"date-time"`
	RevisionNote        string            `json:"revision_note,omitempty"`
	CreatedAt           string            `json:"created_at" format:"date-time"`
	UpdatedAt           string            `json:"updated_at" format:"date-time"`
}

type DocumentPatch struct {
	Title               *string
	Type                *string
	Description         *string
	ProcessIDs          []string
	ISOClauseReferences []ClauseReference
	Status              *string
}

// Duplication rules.
const (
	RuleUnique     = "unique"
	RulePerProcess = "per_process"
)

// Function categories, in display order.
var FunctionCategories = []string{"context", "leadership", "support", "operation", "performance", "improvement"}

// StandardFunction is an immutable catalog record derived from an ISO clause.
type StandardFunction struct {
	ID                   string   `json:"id" yaml:"id"`
	Name                 string   `json:"name" yaml:"name"`
	LinkedStandards      []string `json:"linked_standards" yaml:"linked_standards"`
	ClauseReferences     []string `json:"clause_references" yaml:"clause_references"`
	Description          string   `json:"description" yaml:"description"`
	DuplicationRule      string   `json:"duplication_rule" yaml:"duplication_rule" enum:"unique,per_process"`
	EligibleProcessTypes []string `json:"eligible_process_types" yaml:"eligible_process_types"`
	Mandatory            bool     `json:"mandatory" yaml:"mandatory"`
	Status               string   `json:"status" yaml:"status" enum:"active,future"`
	Category             string   `json:"category" yaml:"category" enum:"context,leadership,support,operation,performance,improvement"`
}

// Function instance statuses.
const (
	InstancePending   = "pending"
	InstanceActive    = "active"
	InstanceCompleted = "completed"
)

// Evidence kinds.
const (
	EvidenceFile = "file"
	EvidenceLink = "link"
	EvidenceNote = "note"
)

// History actions.
const (
	HistoryCreated       = "created"
	HistoryUpdated       = "updated"
	HistoryStatusChanged = "status_changed"
	HistoryEvidenceAdded = "evidence_added"
	HistoryActionLinked  = "action_linked"
)

type Evidence struct {
	ID          string `json:"id"`
	Type        string `json:"type" enum:"file,link,note"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Reference   string `json:"reference,omitempty"`
	AddedAt     string `json:"added_at" format:"date-time"`
	AddedBy     string `json:"added_by,omitempty"`
}

type HistoryEntry struct {
	ID            string `json:"id"`
	Date          string `json:"date" format:"date-time"`
	Action        string `json:"action" enum:"created,updated,status_changed,evidence_added,action_linked"`
	Description   string `json:"description"`
	ChangedBy     string `json:"changed_by,omitempty"`
	PreviousValue string `json:"previous_value,omitempty"`
	NewValue      string `json:"new_value,omitempty"`
}

type FunctionInstance struct {
	ID              string         `json:"id"`
	FunctionID      string         `json:"function_id"`
	ProcessID       string         `json:"process_id"`
	Status          string         `json:"status" enum:"pending,active,completed"`
	Data            map[string]any `json:"data"`
	LinkedActionIDs []string       `json:"linked_action_ids"`
	Evidence        []Evidence     `json:"evidence"`
	History         []HistoryEntry `json:"history"`
	CreatedAt       string         `json:"created_at" format:"date-time"`
	UpdatedAt       string         `json:"updated_at" format:"date-time"`
}

// ApplicableFunction is one row of a process's applicability report.
type ApplicableFunction struct {
	Function           StandardFunction  `json:"function"`
	Instance           *FunctionInstance `json:"instance,omitempty"`
	IsAttached         bool              `json:"is_attached"`
	IsBlocked          bool              `json:"is_blocked"`
	BlockedByProcessID string            `json:"blocked_by_process_id,omitempty"`
	IsMandatory        bool              `json:"is_mandatory"`
	CanAttach          bool              `json:"can_attach"`
}

type FunctionGroup struct {
	Category string               `json:"category"`
	Items    []ApplicableFunction `json:"items"`
}

type Applicability struct {
	ProcessID        string          `json:"process_id"`
	AttachedCount    int             `json:"attached_count"`
	MandatoryMissing int             `json:"mandatory_missing"`
	Groups           []FunctionGroup `json:"groups"`
}

type Compliance struct {
	TotalRequirements      int `json:"total_requirements"`
	AllocatedCount         int `json:"allocated_count"`
	UnallocatedUniqueCount int `json:"unallocated_unique_count"`
	Percentage             int `json:"percentage"`
}

type Dashboard struct {
	ActiveProcesses int        `json:"active_processes"`
	OpenActions     int        `json:"open_actions"`
	OverdueActions  int        `json:"overdue_actions"`
	Risks           int        `json:"risks"`
	TotalIssues     int        `json:"total_issues"`
	Compliance      Compliance `json:"compliance"`
}

type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	ActorID    string         `json:"actor_id"`
	Payload    map[string]any `json:"payload"`
}
