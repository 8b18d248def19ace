package models

import "strings"

// Reason is one node of the two-level downtime reason tree.
type Reason struct {
	Code     string   `json:"code"`
	Label    string   `json:"label"`
	Children []Reason `json:"children,omitempty"`
}

// ReasonTree is the static downtime taxonomy shown to operators.
var ReasonTree = []Reason{
	{Code: "POWER", Label: "Power", Children: []Reason{
		{Code: "GRID", Label: "Grid"},
		{Code: "INTERNAL", Label: "Internal"},
	}},
	{Code: "CHANGEOVER", Label: "Changeover", Children: []Reason{
		{Code: "TOOLING", Label: "Tooling"},
	}},
	{Code: "MECHANICAL", Label: "Mechanical", Children: []Reason{
		{Code: "BREAKDOWN", Label: "Breakdown"},
		{Code: "WEAR", Label: "Wear & Tear"},
		{Code: "VIBRATION", Label: "Vibration"},
	}},
	{Code: "QUALITY", Label: "Quality", Children: []Reason{
		{Code: "DEFECT", Label: "Defective Output"},
		{Code: "CALIBRATION", Label: "Calibration Required"},
	}},
	{Code: "MATERIAL", Label: "Material", Children: []Reason{
		{Code: "SHORTAGE", Label: "Material Shortage"},
		{Code: "JAM", Label: "Material Jam"},
	}},
	{Code: "OPERATOR", Label: "Operator", Children: []Reason{
		{Code: "BREAK", Label: "Scheduled Break"},
		{Code: "TRAINING", Label: "Training"},
		{Code: "ABSENT", Label: "Operator Absent"},
	}},
}

// FindReason returns the parent and child nodes for the given codes.
// ok is false when the parent is unknown or does not contain the child.
func FindReason(parentCode, childCode string) (parent, child Reason, ok bool) {
	for _, p := range ReasonTree {
		if p.Code != parentCode {
			continue
		}
		for _, c := range p.Children {
			if c.Code == childCode {
				return p, c, true
			}
		}
		return p, Reason{}, false
	}
	return Reason{}, Reason{}, false
}

// ResolveReasonPath resolves a "PARENT/CHILD" path such as "MECHANICAL/BREAKDOWN".
// The parent segment may be abbreviated to any prefix that matches exactly one
// parent code, so "MECH/BREAKDOWN" resolves too.
func ResolveReasonPath(path string) (parent, child Reason, ok bool) {
	parentPart, childPart, found := strings.Cut(strings.ToUpper(strings.TrimSpace(path)), "/")
	if !found || parentPart == "" || childPart == "" {
		return Reason{}, Reason{}, false
	}

	var match *Reason
	for i := range ReasonTree {
		if ReasonTree[i].Code == parentPart {
			match = &ReasonTree[i]
			break
		}
		if strings.HasPrefix(ReasonTree[i].Code, parentPart) {
			if match != nil {
				return Reason{}, Reason{}, false
			}
			match = &ReasonTree[i]
		}
	}
	if match == nil {
		return Reason{}, Reason{}, false
	}
	return FindReason(match.Code, childPart)
}
