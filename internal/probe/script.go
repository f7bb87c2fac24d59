package probe

import (
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/trackerprobe/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(b)
}

// lookupExpr is a JavaScript expression yielding the first element matched by sel, or null.
func lookupExpr(sel schemas.Selector) string {
	if sel.IsXPath() {
		return fmt.Sprintf("document.evaluate(%s, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue", jsString(sel.Value))
	}
	return fmt.Sprintf("document.querySelector(%s)", jsString(sel.Value))
}

// fileCountScript reads files.length of the file input, 0 when it is missing.
func fileCountScript(sel schemas.Selector) string {
	return fmt.Sprintf("(function(){const el=%s;return el&&el.files?el.files.length:0;})()", lookupExpr(sel))
}

// textScript reads the trimmed text content of the first match, "" when missing.
func textScript(sel schemas.Selector) string {
	return fmt.Sprintf("(function(){const el=%s;return el?(el.textContent||'').trim():'';})()", lookupExpr(sel))
}
