package registry

import "math/rand/v2"

// Room codes are upper case so lookups can fold whatever case a player
// types. They avoid characters that are easy to confuse: 0, O and I.
const (
	codeAlphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"
	CodeLength   = 6
)

// CodeGenerator produces candidate room codes.
type CodeGenerator func() string

// RandomCode returns a random code of CodeLength characters.
func RandomCode() string {
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = codeAlphabet[rand.IntN(len(codeAlphabet))]
	}
	return string(code)
}
