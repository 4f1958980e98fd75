package grammar

// Regular expression fragments for JSON values. Each fragment matches the
// JSON text of a value, including quotes for string-like values.
const (
	// StringInner matches one character of a JSON string body.
	StringInner = `([^"\\\x00-\x1F\x7F-\x9F]|\\["\\])`
	String      = `"` + StringInner + `*"`
	Integer     = `(-)?(0|[1-9][0-9]*)`
	Number      = `((-)?(0|[1-9][0-9]*))(\.[0-9]+)?([eE][+-][0-9]+)?`
	Boolean     = `(true|false)`
	Null        = `null`

	// Whitespace is the default pattern allowed between structural tokens.
	Whitespace = `[ ]?`

	DateTime = `"(-?(?:[1-9][0-9]*)?[0-9]{4})-(1[0-2]|0[1-9])-(3[01]|0[1-9]|[12][0-9])T(2[0-3]|[01][0-9]):([0-5][0-9]):([0-5][0-9])(\.[0-9]{3})?(Z)?"`
	Date     = `"(?:\d{4})-(?:0[1-9]|1[0-2])-(?:0[1-9]|[1-2][0-9]|3[0-1])"`
	Time     = `"(2[0-3]|[01][0-9]):([0-5][0-9]):([0-5][0-9])(\.[0-9]+)?(Z)?"`
	UUID     = `"[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}"`
)

// formats maps supported string formats to their fragments.
var formats = map[string]string{
	"date-time": DateTime,
	"date":      Date,
	"time":      Time,
	"uuid":      UUID,
}
