// Package field provides fluent builders for defining the fields of a flat
// record type.
//
// A field has a positional index inside its record type (assigned when the
// record type is built), a name, a value kind and validation rules:
//
//	field.String("Name").Required()
//	field.String("Frequency").Default("Hourly").Choices("Timestep", "Hourly", "Daily")
//	field.Number("Design Flow Rate").Min(0).Autosizable()
//	field.Integer("Number of Speeds").Range(1, 10).Default(1)
//	field.Ref("Schedule Name", "Schedule:Constant", "Schedule:Compact")
//	field.Inlet("Inlet Node Name", "inlet")
//	field.Outlet("Outlet Node Name", "outlet")
//
// # Kinds
//
// Four kinds exist: String, Number, Integer and Reference. Reference fields
// hold the name of another record; when RefTypes is set, the referenced
// record must be one of those types. Inlet and Outlet are reference fields
// naming a topology connection point (a node) rather than another record.
//
// # Sentinels
//
// Numeric fields may accept the literal tokens "Autosize" and
// "Autocalculate" in place of a number when built with Autosizable or
// Autocalculatable. Tokens are matched case-insensitively and encoded
// with the canonical spelling.
//
// # Values
//
// Value is the typed variant stored in the object graph. A descriptor
// converts between values and their flat text form:
//
//	fd := field.Number("Capacity").Autosizable().Descriptor()
//	v, _ := fd.Decode("autosize") // Value{Autosize}
//	fd.Encode(v)                  // "Autosize"
//
// Builder misuse (for example a default outside the declared range) is
// recorded in Descriptor.Err and reported when the record type is built.
package field
