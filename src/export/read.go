package export

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bvhConverter/src/kinematics"
	"bvhConverter/src/motion"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrTable means a CSV table does not have the layout its reader expects.
var ErrTable = errors.New("malformed table")

// ReadJointHierarchy reads a table written by WriteJointHierarchy.
func ReadJointHierarchy(r io.Reader) (*kinematics.Tree, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: empty hierarchy table", ErrTable)
	}
	if header := splitRow(scanner.Text()); len(header) != 5 || header[0] != "joint" || header[1] != "parent" {
		return nil, fmt.Errorf("%w: unexpected hierarchy header %q", ErrTable, scanner.Text())
	}

	var params []kinematics.NodeParams
	for line := 2; scanner.Scan(); line++ {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		row := splitRow(scanner.Text())
		if len(row) != 5 {
			return nil, fmt.Errorf("%w: line %d has %d columns, want 5", ErrTable, line, len(row))
		}
		values, err := parseFloats(row[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrTable, line, err)
		}
		offset := r3.Vec{X: values[0], Y: values[1], Z: values[2]}
		params = append(params, kinematics.NodeParams{Name: row[0], ParentName: row[1], Offset: &offset})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return kinematics.FromParams(params)
}

// ReadJointPositions reads a table written by WriteJointPositions. The frame
// time is the mean spacing of the time column, or motion.DefaultFrameTime
// for a single frame.
func ReadJointPositions(r io.Reader) (map[string][]r3.Vec, float64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return nil, 0, fmt.Errorf("%w: empty position table", ErrTable)
	}
	header := splitRow(scanner.Text())
	if len(header) < 4 || (len(header)-1)%3 != 0 || header[0] != "time" {
		return nil, 0, fmt.Errorf("%w: unexpected position header %q", ErrTable, scanner.Text())
	}
	names := make([]string, 0, (len(header)-1)/3)
	for i := 1; i < len(header); i += 3 {
		name, ok := strings.CutSuffix(header[i], ".x")
		if !ok || header[i+1] != name+".y" || header[i+2] != name+".z" {
			return nil, 0, fmt.Errorf("%w: columns %d-%d are not x, y, z of one joint", ErrTable, i, i+2)
		}
		names = append(names, name)
	}

	positions := make(map[string][]r3.Vec, len(names))
	var times []float64
	for line := 2; scanner.Scan(); line++ {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		row := splitRow(scanner.Text())
		if len(row) != len(header) {
			return nil, 0, fmt.Errorf("%w: line %d has %d columns, want %d", ErrTable, line, len(row), len(header))
		}
		values, err := parseFloats(row)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: line %d: %v", ErrTable, line, err)
		}
		if floats.HasNaN(values) {
			return nil, 0, fmt.Errorf("%w: line %d contains NaN", ErrTable, line)
		}
		times = append(times, values[0])
		for j, name := range names {
			k := 1 + 3*j
			positions[name] = append(positions[name], r3.Vec{X: values[k], Y: values[k+1], Z: values[k+2]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	frameTime := motion.DefaultFrameTime
	if n := len(times); n > 1 {
		frameTime = (times[n-1] - times[0]) / float64(n-1)
	}
	return positions, frameTime, nil
}

// ReadHierarchyFile opens and reads a hierarchy table.
func ReadHierarchyFile(path string) (*kinematics.Tree, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadJointHierarchy(file)
}

// ReadPositionsFile opens and reads a position table.
func ReadPositionsFile(path string) (map[string][]r3.Vec, float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()
	return ReadJointPositions(file)
}

func splitRow(line string) []string {
	row := strings.Split(line, ",")
	for i := range row {
		row[i] = strings.TrimSpace(row[i])
	}
	return row
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
