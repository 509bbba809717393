// pkg/enrich/cssresolver.go
package enrich

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// sizingProperties are the only properties the resolver reduces. This is
// deliberately not a general cascade: the remote side returns matched rules
// pre-ordered so that a later rule should win a tie, and we preserve
// exactly that behavior instead of computing specificity ourselves.
const (
	propWidth       = "width"
	propHeight      = "height"
	propAspectRatio = "aspect-ratio"
)

// SourceRuleResolver reads the style sources that govern an element's
// displayed size over the remote channel and reduces them to an effective
// width/height pair. It never returns an error: a node that no longer
// exists or a failed style fetch leaves the element untouched, and the
// batch moves on.
type SourceRuleResolver struct {
	log *zap.Logger
}

// NewSourceRuleResolver creates a resolver.
func NewSourceRuleResolver(logger *zap.Logger) *SourceRuleResolver {
	return &SourceRuleResolver{log: logger.Named("css-resolver")}
}

// Resolve fetches inline style, attribute style, and matched stylesheet
// rules for el's node path and assigns the element's CSSWidth, CSSHeight,
// and Sizing snapshot in place. Every failure path is a no-op.
func (r *SourceRuleResolver) Resolve(ctx context.Context, sess Session, el *ImageElementRecord) {
	nodeID, err := sess.ResolveNodePath(ctx, el.NodePath)
	if err != nil {
		if errors.Is(err, ErrNodeNotFound) {
			r.log.Debug("node path no longer resolves, skipping style lookup",
				zap.String("path", el.NodePath))
		} else {
			r.log.Debug("node path resolution failed",
				zap.String("path", el.NodePath), zap.Error(err))
		}
		return
	}

	styles, err := sess.MatchedStylesForNode(ctx, nodeID)
	if err != nil || styles == nil {
		r.log.Debug("matched style fetch failed",
			zap.Int64("node_id", int64(nodeID)), zap.Error(err))
		return
	}

	snapshot := reduceSizing(styles)
	if snapshot.Effective.Width != nil {
		w := *snapshot.Effective.Width
		el.CSSWidth = &w
	}
	if snapshot.Effective.Height != nil {
		h := *snapshot.Effective.Height
		el.CSSHeight = &h
	}
	el.Sizing = snapshot
}

// reduceSizing collapses the three style sources into one snapshot.
// Precedence for each property independently: inline, then attribute
// style, then the matched rules with the last declaring rule winning.
func reduceSizing(styles *MatchedStyles) *CSSSizingSnapshot {
	snapshot := &CSSSizingSnapshot{
		Inline:       sizingFromDeclaration(styles.Inline),
		Attributes:   sizingFromDeclaration(styles.Attributes),
		MatchedRules: sizingFromRules(styles.Matched),
	}
	snapshot.Effective = SizingProps{
		Width:       firstDeclared(propWidth, snapshot.Inline, snapshot.Attributes, snapshot.MatchedRules),
		Height:      firstDeclared(propHeight, snapshot.Inline, snapshot.Attributes, snapshot.MatchedRules),
		AspectRatio: firstDeclared(propAspectRatio, snapshot.Inline, snapshot.Attributes, snapshot.MatchedRules),
	}
	return snapshot
}

// sizingFromDeclaration extracts the sizing properties of one declaration.
// A later duplicate within the same declaration overwrites an earlier one.
// Returns nil when the source is absent, which is normal for most
// elements.
func sizingFromDeclaration(decl *StyleDeclaration) *SizingProps {
	if decl == nil {
		return nil
	}
	props := &SizingProps{}
	applyDeclaration(props, decl)
	return props
}

// sizingFromRules folds the ordered matched rules into one property set.
// Rules are consumed in the order the remote side supplied them; a later
// rule overwrites an earlier rule's value for the same property.
func sizingFromRules(rules []*StyleDeclaration) *SizingProps {
	if len(rules) == 0 {
		return nil
	}
	props := &SizingProps{}
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		applyDeclaration(props, rule)
	}
	return props
}

func applyDeclaration(props *SizingProps, decl *StyleDeclaration) {
	for _, p := range decl.Properties {
		v := p.Value
		switch p.Name {
		case propWidth:
			props.Width = &v
		case propHeight:
			props.Height = &v
		case propAspectRatio:
			props.AspectRatio = &v
		}
	}
}

// firstDeclared walks the sources in precedence order and returns the
// first declared value for property, or nil when no source declares it.
// nil is distinct from an empty string; an undeclared property stays
// unset.
func firstDeclared(property string, sources ...*SizingProps) *string {
	for _, props := range sources {
		if props == nil {
			continue
		}
		var v *string
		switch property {
		case propWidth:
			v = props.Width
		case propHeight:
			v = props.Height
		case propAspectRatio:
			v = props.AspectRatio
		}
		if v != nil {
			return v
		}
	}
	return nil
}
