// Package schema defines flat record types.
//
// A record type is an ordered list of field descriptors, optionally followed
// by an extensible group that repeats once per row:
//
//	meter := schema.MustNew("Meter",
//	    schema.WithGroup("Output Reporting"),
//	    schema.Fields(
//	        field.String("Key Name").Required(),
//	        field.String("Reporting Frequency").
//	            Default("Hourly").
//	            Choices("Timestep", "Hourly", "Daily", "Monthly", "RunPeriod"),
//	    ),
//	)
//
//	branch := schema.MustNew("BranchList",
//	    schema.Fields(field.String("Name").Required()),
//	    schema.Extensible(0, field.Ref("Branch Name", "Branch")),
//	)
//
// Field descriptors are copied when the type is built and receive their
// positional index. Names of types and fields are compared through Key,
// which case-folds and trims them.
//
// Two synthetic types exist in every registry: CatchAll, carrying records of
// unregistered types verbatim, and CommentOnly, carrying free-standing
// comment lines.
package schema
