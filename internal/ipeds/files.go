package ipeds

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownFile is returned when a requested file tag does not exist.
var ErrUnknownFile = errors.New("unknown IPEDS file")

// Tag identifies the layout of an IPEDS survey file.
type Tag string

// Survey files in import order.
const (
	TagHD   Tag = "HD"
	TagIC   Tag = "IC"
	TagICAY Tag = "IC_AY"
	TagADM  Tag = "ADM"
	TagEFFY Tag = "EFFY"
	TagEFD  Tag = "EF_D"
	TagGR   Tag = "GR"
	TagCA   Tag = "C_A"
	TagSFA  Tag = "SFA"
)

// File is one survey file of a release.
type File struct {
	// Name is the archive base name published by NCES, e.g. HD2015.
	Name string
	Tag  Tag
}

// Files returns the survey files of the release for year in import order.
// Institutional characteristics come first so later files only update
// institutions that exist.
func Files(year int) []File {
	// financial aid is published per academic year, e.g. SFA1415 for 2015
	aidYear := fmt.Sprintf("%02d%02d", (year-1)%100, year%100)
	return []File{
		{Name: fmt.Sprintf("HD%d", year), Tag: TagHD},
		{Name: fmt.Sprintf("IC%d", year), Tag: TagIC},
		{Name: fmt.Sprintf("IC%d_AY", year), Tag: TagICAY},
		{Name: fmt.Sprintf("ADM%d", year), Tag: TagADM},
		{Name: fmt.Sprintf("EFFY%d", year), Tag: TagEFFY},
		{Name: fmt.Sprintf("EF%dD", year), Tag: TagEFD},
		{Name: fmt.Sprintf("GR%d", year), Tag: TagGR},
		{Name: fmt.Sprintf("C%d_A", year), Tag: TagCA},
		{Name: "SFA" + aidYear, Tag: TagSFA},
	}
}

// Select keeps the files whose tags appear in only, preserving the order of
// files. Tags are matched case-insensitively. An empty only selects every
// file.
func Select(files []File, only []string) ([]File, error) {
	if len(only) == 0 {
		return files, nil
	}

	wanted := make(map[Tag]bool, len(only))
	for _, o := range only {
		o = strings.ToUpper(strings.TrimSpace(o))
		if o == "" {
			continue
		}
		wanted[Tag(o)] = true
	}

	var selected []File
	for _, f := range files {
		if wanted[f.Tag] {
			selected = append(selected, f)
			delete(wanted, f.Tag)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for t := range wanted {
			unknown = append(unknown, string(t))
		}
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownFile, strings.Join(unknown, ", "))
	}
	return selected, nil
}

// Names returns the archive names of files.
func Names(files []File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
