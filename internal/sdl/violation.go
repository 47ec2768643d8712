package sdl

import (
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

type Violation struct {
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

func (v *Violation) String() string {
	if v.File == "" {
		return v.Message
	}
	return fmt.Sprintf("%s %s:%d:%d", v.Message, v.File, v.Line, v.Column)
}

type ValidationError []*Violation

func (e ValidationError) Error() string {
	msg := "violations found:\n"
	for _, v := range e {
		msg += "- " + v.String() + "\n"
	}
	return msg
}

// Core primitive used by all template helpers.
func violationWithPosition(message string, pos *ast.Position) *Violation {
	v := &Violation{Message: message}
	if pos != nil {
		v.Line = pos.Line
		v.Column = pos.Column
		if pos.Src != nil {
			v.File = pos.Src.Name
		}
	}
	return v
}

// violationFromParse converts a gqlparser syntax error.
func violationFromParse(file string, err error) *Violation {
	var gerr *gqlerror.Error
	if !errors.As(err, &gerr) {
		return &Violation{Message: err.Error(), File: file}
	}
	v := &Violation{Message: gerr.Message, File: file}
	if len(gerr.Locations) > 0 {
		v.Line = gerr.Locations[0].Line
		v.Column = gerr.Locations[0].Column
	}
	return v
}

// NOTE: Keep messages stable; tests match on them.

func violationUnknownDirective(directive, field, typeName string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Unknown directive @%s on field %s of type %s", directive, field, typeName), pos)
}

func violationUnknownArgument(directive, arg string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Unknown argument '%s' in @%s directive", arg, directive), pos)
}

func violationMissingArgument(directive, arg string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Missing argument '%s' in @%s directive", arg, directive), pos)
}

func violationArgumentKind(directive, arg, want string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Argument '%s' of @%s must be %s", arg, directive, want), pos)
}

func violationAfterTerminal(directive, terminal, field string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Directive @%s follows @%s on field %s", directive, terminal, field), pos)
}

func violationDuplicateDefinition(name string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Duplicate definition %q", name), pos)
}

func violationDuplicateField(field, typeName string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Duplicate field %q found in type %q", field, typeName), pos)
}

func violationTypeNotFound(typeName string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Type %q not found in definitions", typeName), pos)
}

func violationNotObject(typeName string, pos *ast.Position) *Violation {
	return violationWithPosition(fmt.Sprintf("Type %q is not an object type; mark the field @leaf or @literal", typeName), pos)
}

func violationCycle(path []string, pos *ast.Position) *Violation {
	msg := "Type cycle detected:"
	for _, p := range path {
		msg += " " + p
	}
	return violationWithPosition(msg, pos)
}

func violationRootNotFound(root string) *Violation {
	return &Violation{Message: fmt.Sprintf("Root type %q not found", root)}
}
