package game

import "strings"

// normalizeToken checks the from/to(/promotion) shape and lower-cases the token.
func normalizeToken(token string) (string, bool) {
	tok := strings.ToLower(strings.TrimSpace(token))
	if len(tok) != 4 && len(tok) != 5 {
		return "", false
	}
	if !isSquare(tok[0], tok[1]) || !isSquare(tok[2], tok[3]) {
		return "", false
	}
	if len(tok) == 5 && strings.IndexByte("qrbn", tok[4]) < 0 {
		return "", false
	}
	return tok, true
}

func isSquare(file, rank byte) bool {
	return file >= 'a' && file <= 'h' && rank >= '1' && rank <= '8'
}
