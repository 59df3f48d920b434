// Package predicate provides typed predicates over entity fields and
// translates them, along with the untyped input forms, into condition trees.
//
//	var (
//	    Age   = predicate.Field[User, int]("age")
//	    Email = predicate.StringField[User]("email")
//	)
//	g, err := predicate.Translate(predicate.And(Age.GTE(18), Email.HasSuffix("@example.com")))
//
// Translation is total over comparisons, boolean connectives and captured
// values. Opaque functions, field-to-field comparisons and database clock
// calls fail with sqlcore.ErrUnsupportedPredicate.
package predicate
