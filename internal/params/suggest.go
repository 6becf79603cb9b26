package params

import (
	"strings"
	"unicode"

	"db-relay/internal/model"
)

var abbreviations = map[string]string{
	// Common nouns
	"nm": "name", "dt": "date", "no": "number", "num": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"doc": "document", "usr": "user", "emp": "employee", "cust": "customer",
	"dept": "department", "grp": "group", "cat": "category",
	"loc": "location", "lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "prov": "province", "dist": "district",
	"bal": "balance", "rst": "result", "rslt": "result",
	"std": "standard", "avg": "average", "uid": "id", "pid": "id",
	"mail": "email",

	// Verbs / status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value",
	"ord": "order", "seq": "sequence", "idx": "index",
	"flg": "flag",
}

// Meaning expands a column or parameter name into lower-case words with
// abbreviations spelled out: "usr_nm", "UserName" and "user_name" all give "user name".
func Meaning(name string) string {
	words := splitWords(name)
	for i, w := range words {
		if full, ok := abbreviations[w]; ok {
			words[i] = full
		}
	}
	return strings.Join(words, " ")
}

func splitWords(name string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case unicode.IsUpper(r) && i > 0 && len(cur) > 0 &&
			(unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}

// SuggestMappings proposes a source column for each parameter by exact name,
// then case-insensitive name, then expanded meaning. Parameters without a
// candidate are left out.
func SuggestMappings(parameters, columns []string) []model.Mapping {
	var out []model.Mapping
	for _, p := range parameters {
		if col, ok := matchColumn(p, columns); ok {
			out = append(out, model.Mapping{SourceColumn: col, TargetParameter: p})
		}
	}
	return out
}

func matchColumn(param string, columns []string) (string, bool) {
	for _, c := range columns {
		if c == param {
			return c, true
		}
	}
	for _, c := range columns {
		if strings.EqualFold(c, param) {
			return c, true
		}
	}
	want := Meaning(param)
	if want == "" {
		return "", false
	}
	for _, c := range columns {
		if Meaning(c) == want {
			return c, true
		}
	}
	return "", false
}
