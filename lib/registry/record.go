package registry

// Well-known record keys. Records are schema-less field bags keyed by the
// labels the upstream registries expose, so the canonical keys are the
// Cyrillic labels themselves.
const (
	KeyName            = "Наименование"
	KeyFullName        = "Полное наименование"
	KeyTaxID           = "ИНН"
	KeyOGRN            = "ОГРН"
	KeyOKPO            = "ОКПО"
	KeyLegalForm       = "ОКОПФ"
	KeyStatus          = "Статус"
	KeyStatusActive    = "Статус_bool"
	KeyRegistered      = "Зарегистрирована"
	KeyAddress         = "Адрес"
	KeyOKVED           = "ОКВЭД"
	KeyOKVEDPrimary    = "Основной"
	KeyOKVEDAdditional = "Дополнительные"
	KeyHeadOfOrg       = "Руководитель"
	KeyRegion          = "Регион"
	KeyParentCompany   = "parentCompany"
)

type Kind int

const (
	KindText Kind = iota
	KindBool
	KindPairs
	KindNested
)

// Pair is a code/description tuple, used for activity classifications.
type Pair struct {
	Code        string
	Description string
}

// Value is the tagged union a record field can hold: plain text, a boolean,
// a list of code pairs, or a nested record.
type Value struct {
	Kind   Kind
	Text   string
	Bool   bool
	Pairs  []Pair
	Nested *Record
}

func TextValue(text string) Value   { return Value{Kind: KindText, Text: text} }
func BoolValue(b bool) Value        { return Value{Kind: KindBool, Bool: b} }
func PairsValue(pairs []Pair) Value { return Value{Kind: KindPairs, Pairs: pairs} }
func NestedValue(r *Record) Value   { return Value{Kind: KindNested, Nested: r} }

// Record is an insertion-ordered mapping from field label to Value. Fields
// present depend entirely on what the source page or API exposed.
type Record struct {
	keys   []string
	values map[string]Value
}

func NewRecord() *Record {
	return &Record{values: map[string]Value{}}
}

func (r *Record) Set(key string, v Value) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

func (r *Record) SetText(key, text string) { r.Set(key, TextValue(text)) }
func (r *Record) SetBool(key string, b bool) { r.Set(key, BoolValue(b)) }

// SetIfAbsent stores v only when key has not been populated by an earlier
// extraction step.
func (r *Record) SetIfAbsent(key string, v Value) {
	if r.Has(key) {
		return
	}
	r.Set(key, v)
}

func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Text returns the text of key, or "" when the field is absent or not text.
func (r *Record) Text(key string) string {
	v, ok := r.values[key]
	if !ok || v.Kind != KindText {
		return ""
	}
	return v.Text
}

func (r *Record) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

func (r *Record) Len() int {
	return len(r.keys)
}

func (r *Record) TaxID() string { return r.Text(KeyTaxID) }

// Clone deep-copies the record. Records are treated as immutable after
// construction, so a copy is made before any mutation such as attaching a
// parent reference.
func (r *Record) Clone() *Record {
	out := NewRecord()
	for _, k := range r.keys {
		v := r.values[k]
		if v.Kind == KindPairs {
			pairs := make([]Pair, len(v.Pairs))
			copy(pairs, v.Pairs)
			v.Pairs = pairs
		}
		if v.Kind == KindNested && v.Nested != nil {
			v.Nested = v.Nested.Clone()
		}
		out.Set(k, v)
	}
	return out
}

// ObjectType discriminates commercial-registry search subjects.
type ObjectType int

const (
	ObjectCompany ObjectType = 0
	ObjectPerson  ObjectType = 1
)

type LinkedCompany struct {
	CompanyID string
}

type LinkedPosition struct {
	Position        string
	LinkedCompanies []LinkedCompany
}

// Match is a lightweight search result row.
type Match struct {
	ID          string
	ShortName   string
	FullName    string
	TaxID       string
	ObjectType  ObjectType
	Active      bool
	SuspendDate string
	// position records linking a person subject to companies
	LinkedPositions []LinkedPosition
	// government-registry rows carry the full remapped field set
	Details *Record
}

// Person is produced only as a byproduct of company searches; there is no
// lookup-by-id for persons.
type Person struct {
	FullName  string
	ID        string
	TaxID     string
	Positions []string
}
