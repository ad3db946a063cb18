package dispatch

import "strings"

// ParseArgs splits line on whitespace, except that a run of tokens spanned
// by an odd number of double-quote characters is kept together as one
// composite argument: an opening token with an unmatched quote starts a
// "linked" span that continues, whitespace and all, until a later token's
// quote count brings the running total back to even (or the input ends,
// in which case the unterminated span runs to the end of the string). The
// composite argument is the span's exact text in line, inner whitespace
// included as typed. The quotes themselves are kept in the returned argument; callers that want
// the inner literal strip them with StripQuotes.
func ParseArgs(line string) []string {
	fields := strings.Fields(line)
	starts := make([]int, len(fields))
	pos := 0
	for k, f := range fields {
		pos += strings.Index(line[pos:], f)
		starts[k] = pos
		pos += len(f)
	}
	var args []string
	i := 0
	for i < len(fields) {
		tok := fields[i]
		if strings.Count(tok, `"`)%2 != 0 {
			quotes := 1
			j := i + 1
			for j < len(fields) && quotes%2 != 0 {
				quotes += strings.Count(fields[j], `"`)
				j++
			}
			args = append(args, line[starts[i]:starts[j-1]+len(fields[j-1])])
			i = j
			continue
		}
		args = append(args, tok)
		i++
	}
	return args
}

// StripQuotes removes one layer of leading/trailing double quotes from arg,
// if both are present; otherwise it returns arg unchanged.
func StripQuotes(arg string) string {
	if len(arg) >= 2 && strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
		return arg[1 : len(arg)-1]
	}
	return arg
}
