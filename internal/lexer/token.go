package lexer

type TokenType uint8

const (
	TEOF TokenType = iota
	TIdent
	TInt
	TFloat
	TString
	TTrue
	TFalse
	TNil
	TThis
	TDollarDollar
	TPositional // $1, $2, ...
	TUnderscore

	TLParen
	TRParen
	TLBrace
	TRBrace
	TLBracket
	TRBracket
	TObjOpen // [=
	TComma
	TSemi
	TColon
	TArrow     // ->
	TFuncSigil // :
	TFuncShort // ::

	TAssign
	TPlusAssign
	TMinusAssign
	TStarAssign
	TSlashAssign
	TPercentAssign

	TPlus
	TMinus
	TStar
	TSlash
	TCaret
	TPercent
	TTilde
	TBang
	THash
	TPush // <<

	TEq
	TNeq
	TLt
	TGt
	TLe
	TGe

	TAnd
	TOr
	TXor

	TDot

	TIf
	TElse
	TWhile
	TFor
	TIn
	TBreak
	TContinue
	TReturn
	TYield
)

type Token struct {
	Type   TokenType
	Text   string
	Int    int32
	Float  float32
	Line   int
	Column int
}

var keywords = map[string]TokenType{
	"true": TTrue, "false": TFalse, "nil": TNil, "this": TThis,
	"if": TIf, "else": TElse, "while": TWhile, "for": TFor, "in": TIn,
	"break": TBreak, "continue": TContinue, "return": TReturn, "yield": TYield,
	"and": TAnd, "or": TOr, "xor": TXor,
}
