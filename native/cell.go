package native

// Cell is a named container of geometry and references.
type Cell struct {
	Name        string
	Polygons    Array[Addr]
	References  Array[Addr]
	FlexPaths   Array[Addr]
	RobustPaths Array[Addr]
	Labels      Array[Addr]
}

// ArrayFor returns the array that holds objects of kind k, or nil.
func (c *Cell) ArrayFor(k Kind) *Array[Addr] {
	switch k {
	case KindPolygon:
		return &c.Polygons
	case KindReference:
		return &c.References
	case KindFlexPath:
		return &c.FlexPaths
	case KindRobustPath:
		return &c.RobustPaths
	case KindLabel:
		return &c.Labels
	}
	return nil
}

// GeometryKinds lists the cell array kinds in a fixed order.
var GeometryKinds = [...]Kind{KindPolygon, KindReference, KindFlexPath, KindRobustPath, KindLabel}

// Len returns the total number of objects in the cell.
func (c *Cell) Len() int {
	return c.Polygons.Len() + c.References.Len() + c.FlexPaths.Len() +
		c.RobustPaths.Len() + c.Labels.Len()
}

// Clear empties every array. The objects themselves are not freed.
func (c *Cell) Clear() {
	c.Name = ""
	for _, k := range GeometryKinds {
		c.ArrayFor(k).Clear()
	}
}

// RawCell is an opaque cell imported verbatim from a stream file.
type RawCell struct {
	Name string
	Data []byte
}

// Library is a named collection of cells and raw cells.
type Library struct {
	Name      string
	Cells     Array[Addr]
	RawCells  Array[Addr]
	Unit      float64
	Precision float64
}

// Clear empties both member arrays.
func (l *Library) Clear() {
	l.Name = ""
	l.Cells.Clear()
	l.RawCells.Clear()
}
