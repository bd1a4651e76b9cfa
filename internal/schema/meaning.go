package schema

import (
	"strings"
	"unicode"
)

var abbreviations = map[string]string{
	// Common Nouns
	"nm": "name", "dt": "date", "no": "number", "num": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone", "mob": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "url": "url", "ip": "ip", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "subj": "subject",
	"doc": "document", "usr": "user", "emp": "employee", "cust": "customer",
	"dept": "department", "grp": "group", "cat": "category",
	"loc": "location", "lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "prov": "province", "dist": "district",
	"bal": "balance", "acct": "account", "acc": "account", "sal": "salary",
	"dob": "birthdate", "bday": "birthdate", "ssn": "ssn", "iban": "iban",
	"avg": "average", "uid": "id", "pid": "id",

	// Verbs / Status
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value",
	"ord": "order", "seq": "sequence", "idx": "index",
	"flg": "flag",
}

type meaningRule struct {
	meaning  string
	keywords []string
}

// Ordered: the first rule with a matching keyword wins.
var meaningRules = []meaningRule{
	{"password", []string{"password", "passwd", "secret", "pin"}},
	{"ssn", []string{"ssn", "social security", "national id", "passport", "tax id"}},
	{"card", []string{"card number", "credit card", "cvv", "iban", "account number"}},
	{"email", []string{"email", "e-mail", "mail"}},
	{"phone", []string{"phone", "mobile", "fax", "tel"}},
	{"birthdate", []string{"birth", "birthdate", "dob"}},
	{"address", []string{"address", "street"}},
	{"zipcode", []string{"zipcode", "zip", "postal"}},
	{"salary", []string{"salary", "wage", "compensation", "income"}},
	{"ip", []string{"ip", "ip address"}},
	{"name", []string{"first name", "last name", "full name", "surname", "customer name", "employee name", "contact name"}},
	{"city", []string{"city"}},
	{"country", []string{"country"}},
	{"id", []string{"id", "user id"}},
	{"date", []string{"date", "time"}},
	{"price", []string{"price", "cost", "amount", "balance"}},
	{"count", []string{"count", "quantity"}},
	{"yesno", []string{"yesno", "flag"}},
}

// Meanings worth flagging when a column carrying them is left unused.
var sensitiveMeanings = map[string]bool{
	"password": true, "ssn": true, "card": true, "email": true, "phone": true,
	"birthdate": true, "address": true, "zipcode": true, "salary": true,
	"ip": true, "name": true,
}

// AnalyzeMeaning guesses what a column holds from its name and optional
// description. It returns one of the well-known meanings ("email", "phone",
// ...) when a keyword matches, otherwise the expanded name.
func AnalyzeMeaning(colName, description string) string {
	words := splitWords(colName)

	// 1. Expand abbreviations
	decoded := make([]string, 0, len(words))
	for _, w := range words {
		if full, ok := abbreviations[w]; ok {
			decoded = append(decoded, full)
		} else {
			decoded = append(decoded, w)
		}
	}
	phrase := " " + strings.Join(decoded, " ") + " "
	d := " " + strings.Join(splitWords(description), " ") + " "

	// 2. Description keywords take priority over the name
	for _, text := range []string{d, phrase} {
		for _, rule := range meaningRules {
			for _, kw := range rule.keywords {
				if strings.Contains(text, " "+kw+" ") {
					return rule.meaning
				}
			}
		}
	}

	return strings.Join(decoded, " ")
}

// IsSensitive reports whether a meaning names personal or secret data.
func IsSensitive(meaning string) bool {
	return sensitiveMeanings[meaning]
}

// splitWords lowercases and splits on separators and camelCase boundaries.
func splitWords(s string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(s)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && len(cur) > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return words
}
