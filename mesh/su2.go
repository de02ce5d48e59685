package mesh

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// From here: https://su2code.github.io/docs_v7/Mesh-File/
type SU2ElementType uint8

const (
	ELType_VERTEX      SU2ElementType = 1
	ELType_LINE        SU2ElementType = 3
	ELType_Triangle    SU2ElementType = 5
	ELType_Tetrahedral SU2ElementType = 10
)

func (et SU2ElementType) numNodes() int {
	switch et {
	case ELType_VERTEX:
		return 1
	case ELType_LINE:
		return 2
	case ELType_Triangle:
		return 3
	case ELType_Tetrahedral:
		return 4
	}
	return 0
}

func simplexType(dim int) SU2ElementType {
	if dim == 2 {
		return ELType_Triangle
	}
	return ELType_Tetrahedral
}

func faceType(dim int) SU2ElementType {
	if dim == 2 {
		return ELType_LINE
	}
	return ELType_Triangle
}

func ReadSU2File(filename string) (m *Mesh, err error) {
	var file *os.File
	if file, err = os.Open(filename); err != nil {
		return nil, fmt.Errorf("unable to open file %s: %w", filename, err)
	}
	defer file.Close()
	if m, err = ReadSU2(file); err != nil {
		err = fmt.Errorf("reading %s: %w", filename, err)
	}
	return
}

type su2Scanner struct {
	*bufio.Scanner
	line int
}

// next returns the next line that is neither blank nor a % comment.
func (s *su2Scanner) next() (line string, err error) {
	for s.Scan() {
		s.line++
		line = strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		return
	}
	if err = s.Err(); err == nil {
		err = io.ErrUnexpectedEOF
	}
	return
}

// keyword splits "KEY= value" lines.
func keyword(line string) (key, value string, ok bool) {
	ind := strings.Index(line, "=")
	if ind < 0 {
		return
	}
	return strings.TrimSpace(line[:ind]), strings.TrimSpace(line[ind+1:]), true
}

func (s *su2Scanner) readNumber(key string) (num int, err error) {
	var (
		line, k, v string
		ok         bool
	)
	if line, err = s.next(); err != nil {
		return
	}
	if k, v, ok = keyword(line); !ok || k != key {
		err = fmt.Errorf("line %d: expected %s=, have [%s]", s.line, key, line)
		return
	}
	if num, err = strconv.Atoi(v); err != nil {
		err = fmt.Errorf("line %d: unable to read number from [%s]", s.line, line)
	}
	return
}

func (s *su2Scanner) readInts(n int) (vals []int, err error) {
	var line string
	if line, err = s.next(); err != nil {
		return
	}
	fields := strings.Fields(line)
	if len(fields) < n {
		return nil, fmt.Errorf("line %d: need at least %d fields, have [%s]", s.line, n, line)
	}
	vals = make([]int, len(fields))
	for i, f := range fields {
		if vals[i], err = strconv.Atoi(f); err != nil {
			return nil, fmt.Errorf("line %d: bad integer %q", s.line, f)
		}
	}
	return
}

// ReadSU2 reads a 2D triangle or 3D tetrahedral mesh. An optional integer
// after the element id carries the sub-domain flag. Marker tags are read as
// integer flags, either plain ("51") or as a trailing suffix ("wall-51").
func ReadSU2(r io.Reader) (m *Mesh, err error) {
	var (
		s    = &su2Scanner{Scanner: bufio.NewScanner(r)}
		line string
	)
	m = &Mesh{NodeSets: make(map[int][]int), MarkerNames: make(map[int]string)}
	for {
		if line, err = s.next(); err == io.ErrUnexpectedEOF {
			break
		} else if err != nil {
			return nil, err
		}
		key, value, ok := keyword(line)
		if !ok {
			return nil, fmt.Errorf("line %d: badly formed input line [%s], should have an =", s.line, line)
		}
		var num int
		if key != "MARKER_TAG" {
			if num, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("line %d: unable to read number from [%s]", s.line, line)
			}
		}
		switch key {
		case "NDIME":
			if num != 2 && num != 3 {
				return nil, fmt.Errorf("only 2D and 3D meshes are supported, got NDIME=%d", num)
			}
			m.Dim = num
		case "NELEM":
			if err = s.readElements(m, num); err != nil {
				return nil, err
			}
		case "NPOIN":
			if err = s.readVertices(m, num); err != nil {
				return nil, err
			}
		case "NMARK":
			for n := 0; n < num; n++ {
				if err = s.readMarker(m); err != nil {
					return nil, err
				}
			}
		default:
			return nil, fmt.Errorf("line %d: unknown keyword %s", s.line, key)
		}
	}
	err = m.Validate()
	return
}

func (s *su2Scanner) readElements(m *Mesh, nelem int) (err error) {
	if m.Dim == 0 {
		return fmt.Errorf("line %d: NELEM before NDIME", s.line)
	}
	var (
		want = simplexType(m.Dim)
		nv   = want.numNodes()
		vals []int
	)
	m.Elements = make([]Element, 0, nelem)
	for k := 0; k < nelem; k++ {
		if vals, err = s.readInts(1 + nv); err != nil {
			return
		}
		if SU2ElementType(vals[0]) != want {
			return fmt.Errorf("line %d: element type %d, a %dD mesh holds type %d only",
				s.line, vals[0], m.Dim, want)
		}
		el := Element{Verts: vals[1 : 1+nv], Tag: DefaultDomainFlag}
		if len(vals) > 2+nv {
			el.Tag = vals[2+nv]
		}
		m.Elements = append(m.Elements, el)
	}
	return
}

func (s *su2Scanner) readVertices(m *Mesh, npoin int) (err error) {
	if m.Dim == 0 {
		return fmt.Errorf("line %d: NPOIN before NDIME", s.line)
	}
	var line string
	m.Vertices = make([][3]float64, npoin)
	for i := 0; i < npoin; i++ {
		if line, err = s.next(); err != nil {
			return
		}
		fields := strings.Fields(line)
		if len(fields) < m.Dim {
			return fmt.Errorf("line %d: unable to read coordinates from [%s]", s.line, line)
		}
		id := i
		if len(fields) > m.Dim {
			if id, err = strconv.Atoi(fields[m.Dim]); err != nil || id < 0 || id >= npoin {
				return fmt.Errorf("line %d: bad point id in [%s]", s.line, line)
			}
		}
		for d := 0; d < m.Dim; d++ {
			if m.Vertices[id][d], err = strconv.ParseFloat(fields[d], 64); err != nil {
				return fmt.Errorf("line %d: bad coordinate %q", s.line, fields[d])
			}
		}
	}
	return
}

func (s *su2Scanner) readMarker(m *Mesh) (err error) {
	var (
		line, key, name string
		flag, nElems    int
		vals            []int
		ok              bool
	)
	if line, err = s.next(); err != nil {
		return
	}
	if key, name, ok = keyword(line); !ok || key != "MARKER_TAG" {
		return fmt.Errorf("line %d: expected MARKER_TAG=, have [%s]", s.line, line)
	}
	if flag, err = MarkerFlag(name); err != nil {
		return fmt.Errorf("line %d: %w", s.line, err)
	}
	if name != strconv.Itoa(flag) {
		m.MarkerNames[flag] = name
	}
	if nElems, err = s.readNumber("MARKER_ELEMS"); err != nil {
		return
	}
	for n := 0; n < nElems; n++ {
		if vals, err = s.readInts(2); err != nil {
			return
		}
		et := SU2ElementType(vals[0])
		nv := et.numNodes()
		switch {
		case et == ELType_VERTEX:
			m.NodeSets[flag] = append(m.NodeSets[flag], vals[1])
		case et == faceType(m.Dim) && len(vals) >= 1+nv:
			m.Boundary = append(m.Boundary, BoundaryFace{
				Verts: append([]int(nil), vals[1:1+nv]...),
				Tag:   flag,
			})
		default:
			return fmt.Errorf("line %d: marker %s holds element type %d, not valid in %dD",
				s.line, name, vals[0], m.Dim)
		}
	}
	return
}

// MarkerFlag converts a marker tag into an integer flag.
func MarkerFlag(name string) (flag int, err error) {
	if flag, err = strconv.Atoi(name); err == nil {
		return
	}
	if ind := strings.LastIndexAny(name, "-_"); ind >= 0 {
		if flag, err = strconv.Atoi(name[ind+1:]); err == nil {
			return
		}
	}
	return 0, fmt.Errorf("marker tag [%s] carries no integer flag", name)
}

func WriteSU2File(filename string, m *Mesh) (err error) {
	var file *os.File
	if file, err = os.Create(filename); err != nil {
		return
	}
	if err = WriteSU2(file, m); err != nil {
		_ = file.Close()
		return
	}
	return file.Close()
}

func WriteSU2(w io.Writer, m *Mesh) (err error) {
	if err = m.Validate(); err != nil {
		return
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%%\n%% Problem dimension\n%%\nNDIME= %d\n", m.Dim)
	fmt.Fprintf(bw, "%%\n%% Inner element connectivity: type, vertices, id, domain flag\n%%\n")
	fmt.Fprintf(bw, "NELEM= %d\n", len(m.Elements))
	et := simplexType(m.Dim)
	for k, el := range m.Elements {
		fmt.Fprintf(bw, "%d", et)
		for _, v := range el.Verts {
			fmt.Fprintf(bw, " %d", v)
		}
		fmt.Fprintf(bw, " %d %d\n", k, el.Tag)
	}
	fmt.Fprintf(bw, "%%\n%% Node coordinates\n%%\nNPOIN= %d\n", len(m.Vertices))
	for i, x := range m.Vertices {
		for d := 0; d < m.Dim; d++ {
			fmt.Fprintf(bw, "%s ", strconv.FormatFloat(x[d], 'g', -1, 64))
		}
		fmt.Fprintf(bw, "%d\n", i)
	}
	flags := m.MarkerFlags()
	fmt.Fprintf(bw, "%%\n%% Boundary elements\n%%\nNMARK= %d\n", len(flags))
	ft := faceType(m.Dim)
	for _, flag := range flags {
		name, ok := m.MarkerNames[flag]
		if !ok {
			name = strconv.Itoa(flag)
		}
		var lines []string
		for _, f := range m.Boundary {
			if f.Tag != flag {
				continue
			}
			var sb strings.Builder
			fmt.Fprintf(&sb, "%d", ft)
			for _, v := range f.Verts {
				fmt.Fprintf(&sb, " %d", v)
			}
			lines = append(lines, sb.String())
		}
		nodes := append([]int(nil), m.NodeSets[flag]...)
		sort.Ints(nodes)
		for _, v := range nodes {
			lines = append(lines, fmt.Sprintf("%d %d", ELType_VERTEX, v))
		}
		fmt.Fprintf(bw, "MARKER_TAG= %s\nMARKER_ELEMS= %d\n", name, len(lines))
		for _, l := range lines {
			fmt.Fprintln(bw, l)
		}
	}
	return bw.Flush()
}
