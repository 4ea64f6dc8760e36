package record

import (
	"fmt"
)

// AssocKind distinguishes the three relationship shapes between record
// types.
type AssocKind int

const (
	// Referenced is a non-owning many-to-one link resolved through the
	// target's feed item UUID; the target's lifecycle is independent.
	Referenced AssocKind = iota + 1
	// UniOwned is a strict one-to-one composition whose child lifecycle is
	// governed by the owner.
	UniOwned
	// MultiOwned is a one-to-many composition; children hold a non-unique
	// foreign key back to the owner.
	MultiOwned
)

func (k AssocKind) String() string {
	switch k {
	case Referenced:
		return "referenced"
	case UniOwned:
		return "uniOwned"
	case MultiOwned:
		return "multiOwned"
	}
	return "unknown"
}

// AssocDef declares a relationship to another entity type. JoinColumn is
// only needed when the schema offers more than one candidate foreign key
// between the two tables.
type AssocDef struct {
	Kind       AssocKind
	Target     *Type
	Property   string
	JoinColumn string
}

// assoc is a resolved association: the join column pair, its direction and
// nullability, as derived from the schemas of both sides.
type assoc struct {
	AssocDef
	owner *Type // the declaring type
	// fromOwner reports that this entity's table holds the foreign key.
	// When false the target table holds a (unique, for UniOwned) foreign
	// key back to this entity.
	fromOwner bool
	column    string // the foreign key column, on whichever side holds it
	nullable  bool   // nullability of the foreign key column
}

// resolveAssoc validates a declared association against the schemas of
// both tables and produces the join descriptor. Ambiguity and missing
// foreign keys are configuration errors and fail the whole Setup.
func resolveAssoc(t *Type, def AssocDef) (*assoc, error) {
	if def.Target == nil {
		return nil, setupErrf(t.Name, "association %q has no target type", def.Property)
	}
	if def.Target.schema == nil {
		return nil, setupErrf(t.Name, "association %q: target type %s must be set up first", def.Property, def.Target.Name)
	}
	if def.Property == "" {
		return nil, setupErrf(t.Name, "%s association to %s has no property name", def.Kind, def.Target.Name)
	}

	own := t.schema
	other := def.Target.schema

	ownFKs := own.foreignKeysTo(other.Name)
	var otherFKs []ForeignKey
	switch def.Kind {
	case UniOwned, Referenced:
		// Reverse form requires uniqueness, otherwise the relation would
		// not be one-to-one.
		otherFKs = other.uniqueForeignKeysTo(own.Name)
	case MultiOwned:
		// Only the owned-holds-key shape exists for collections.
		otherFKs = other.foreignKeysTo(own.Name)
		ownFKs = nil
	}

	var fk *ForeignKey
	fromOwner := false

	switch {
	case def.JoinColumn != "":
		if f := own.foreignKeyOn(def.JoinColumn); f != nil && f.RefTable == other.Name && def.Kind != MultiOwned {
			fk, fromOwner = f, true
		} else if f := other.foreignKeyOn(def.JoinColumn); f != nil && f.RefTable == own.Name {
			fk, fromOwner = f, false
		} else {
			return nil, setupErrf(t.Name, "association %q: join column %q is not a foreign key between %s and %s",
				def.Property, def.JoinColumn, own.Name, other.Name)
		}
	case len(ownFKs) == 0 && len(otherFKs) == 0:
		return nil, setupErrf(t.Name, "association %q: no foreign key links %s and %s; add one on %s referencing %s(%s)",
			def.Property, own.Name, other.Name, expectedFKSide(def.Kind, own.Name, other.Name), fkTargetTable(def.Kind, own.Name, other.Name), "id")
	case len(ownFKs)+len(otherFKs) > 1:
		return nil, setupErrf(t.Name, "association %q: ambiguous foreign keys between %s and %s (%s); disambiguate with JoinColumn",
			def.Property, own.Name, other.Name, candidateColumns(ownFKs, otherFKs))
	case len(ownFKs) == 1:
		fk, fromOwner = &ownFKs[0], true
	default:
		fk, fromOwner = &otherFKs[0], false
	}

	if def.Kind == MultiOwned && fromOwner {
		return nil, setupErrf(t.Name, "association %q: multiOwned requires the owned table %s to hold the foreign key",
			def.Property, other.Name)
	}

	targetPK := other.PrimaryKey
	holderPK := own.PrimaryKey
	if fromOwner {
		if fk.RefColumn != targetPK {
			return nil, setupErrf(t.Name, "association %q: foreign key %s.%s targets %s.%s, expected primary key %s",
				def.Property, own.Name, fk.Column, other.Name, fk.RefColumn, targetPK)
		}
	} else {
		if fk.RefColumn != holderPK {
			return nil, setupErrf(t.Name, "association %q: foreign key %s.%s targets %s.%s, expected primary key %s",
				def.Property, other.Name, fk.Column, own.Name, fk.RefColumn, holderPK)
		}
	}

	holder := own
	if !fromOwner {
		holder = other
	}
	col := holder.Column(fk.Column)

	// Convention checks are advisory: an owned-side key should be NOT NULL
	// so orphan rows cannot exist, but existing schemas sometimes differ.
	if def.Kind == MultiOwned && col.Nullable {
		t.logger.Warn().
			Str("type", t.Name).
			Str("association", def.Property).
			Str("column", fmt.Sprintf("%s.%s", holder.Name, fk.Column)).
			Msg("multiOwned foreign key is nullable; owned rows may orphan")
	}
	if def.Kind == UniOwned && !fromOwner && col.Nullable {
		t.logger.Warn().
			Str("type", t.Name).
			Str("association", def.Property).
			Str("column", fmt.Sprintf("%s.%s", holder.Name, fk.Column)).
			Msg("owned-side foreign key is nullable; owned rows may orphan")
	}

	return &assoc{
		AssocDef:  def,
		owner:     t,
		fromOwner: fromOwner,
		column:    fk.Column,
		nullable:  col.Nullable,
	}, nil
}

func expectedFKSide(kind AssocKind, own, other string) string {
	if kind == MultiOwned {
		return other
	}
	return own
}

func fkTargetTable(kind AssocKind, own, other string) string {
	if kind == MultiOwned {
		return own
	}
	return other
}

func candidateColumns(ownFKs, otherFKs []ForeignKey) string {
	s := ""
	for _, fk := range ownFKs {
		if s != "" {
			s += ", "
		}
		s += fk.Column
	}
	for _, fk := range otherFKs {
		if s != "" {
			s += ", "
		}
		s += fk.Column
	}
	return s
}
