package expr

import (
	"fmt"
	"math"
)

// compare applies a comparison operator. Equality is numeric when both sides
// are numbers and falls back to formatted equality otherwise; ordering is
// lexical for two strings and numeric for everything else.
func compare(op string, left, right any) bool {
	switch op {
	case "==":
		return equals(left, right)
	case "!=":
		return !equals(left, right)
	}

	if ls, ok := left.(string); ok {
		if rs, ok := right.(string); ok {
			switch op {
			case "<":
				return ls < rs
			case ">":
				return ls > rs
			case "<=":
				return ls <= rs
			case ">=":
				return ls >= rs
			}
		}
	}

	l, r := ToFloat64(left), ToFloat64(right)
	switch op {
	case "<":
		return l < r
	case ">":
		return l > r
	case "<=":
		return l <= r
	case ">=":
		return l >= r
	}
	return false
}

func equals(left, right any) bool {
	if IsNumber(left) && IsNumber(right) {
		return ToFloat64(left) == ToFloat64(right)
	}
	return fmt.Sprintf("%v", left) == fmt.Sprintf("%v", right)
}

// arithmetic applies + - * / %. Integer operands keep integer results except
// for division; + concatenates when either side is a string.
func arithmetic(op string, left, right any) (any, error) {
	if op == "+" {
		_, ls := left.(string)
		_, rs := right.(string)
		if ls || rs {
			return fmt.Sprint(left) + fmt.Sprint(right), nil
		}
	}
	if !IsNumber(left) || !IsNumber(right) {
		return nil, fmt.Errorf("%w: %T %s %T", ErrType, left, op, right)
	}

	li, lInt := toInt(left)
	ri, rInt := toInt(right)
	if lInt && rInt && op != "/" {
		switch op {
		case "+":
			return li + ri, nil
		case "-":
			return li - ri, nil
		case "*":
			return li * ri, nil
		case "%":
			if ri == 0 {
				return nil, ErrDivisionByZero
			}
			return li % ri, nil
		}
	}

	l, r := ToFloat64(left), ToFloat64(right)
	switch op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return l / r, nil
	case "%":
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(l, r), nil
	}
	return nil, fmt.Errorf("%w: unknown operator %s", ErrSyntax, op)
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case int32:
		return int(val), true
	}
	return 0, false
}
