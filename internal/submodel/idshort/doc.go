// Package idshort parses idShort paths, the hierarchical addresses of
// submodel elements.
//
// A path is a sequence of Name and Index segments:
//
//	technicalData                  one Name
//	technicalData.readings         two Names
//	technicalData.readings[2]      two Names and an Index
//	matrix[0][1].cell              Names and Indexes mixed
//
// A "." ends the current name, "[" starts an index and "]" ends it. Names
// cannot contain ".", "[" or "]"; there is no escaping. The first segment
// is always a Name selecting a top-level element.
//
// Parsing is strict: an unterminated "[", a non-numeric index or a path
// starting with an index fails with ErrMalformedPath.
package idshort
