package ot

// Transform returns op adjusted as if concurrent had already been applied.
// Both operations must have been produced against the same base version.
//
// Equal-position inserts are ordered by UserID, the greater id lands after.
// A delete swallowed entirely by a concurrent delete keeps Length 0.
// Positions and lengths saturate at math.MaxInt instead of wrapping.
func Transform(op, concurrent Operation) Operation {
	switch {
	case op.Type == TypeInsert && concurrent.Type == TypeInsert:
		if op.Position > concurrent.Position ||
			(op.Position == concurrent.Position && op.UserID > concurrent.UserID) {
			op.Position = addSat(op.Position, Len(concurrent.Chars))
		}

	case op.Type == TypeInsert && concurrent.Type == TypeDelete:
		if op.Position > concurrent.Position {
			op.Position -= max(0, min(op.Position-concurrent.Position, concurrent.Length))
		}

	case op.Type == TypeDelete && concurrent.Type == TypeInsert:
		if op.Position >= concurrent.Position {
			op.Position = addSat(op.Position, Len(concurrent.Chars))
		} else if addSat(op.Position, op.Length) > concurrent.Position {
			op.Length = addSat(op.Length, Len(concurrent.Chars))
		}

	case op.Type == TypeDelete && concurrent.Type == TypeDelete:
		if op.Position >= concurrent.Position {
			concurrentEnd := addSat(concurrent.Position, concurrent.Length)
			if op.Position >= concurrentEnd {
				op.Position -= concurrent.Length
			} else {
				overlap := concurrentEnd - op.Position
				op.Position = concurrent.Position
				op.Length = max(0, op.Length-overlap)
			}
		}
	}

	return op
}

// TransformAll transforms op through each operation of missed in order,
// feeding every result into the next step.
func TransformAll(op Operation, missed []Operation) Operation {
	for _, m := range missed {
		op = Transform(op, m)
	}
	return op
}
