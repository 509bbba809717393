// pkg/enrich/types.go
package enrich

// Size holds the intrinsic pixel dimensions of an image resource as the
// page's decoder reports them, independent of how the element is displayed.
type Size struct {
	Width  int64 `json:"width"`
	Height int64 `json:"height"`
}

// Rect is a bounding client rect as measured in the page.
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// ImageElementRecord is one discovered image on the page. It is created by
// the in-page collector, mutated in place during enrichment, and consumed
// read-only by reporting. Pointer fields distinguish "never resolved" from
// a resolved-but-empty value; downstream consumers must treat nil as
// unknown, not as zero.
type ImageElementRecord struct {
	Src    string `json:"src"`
	Srcset string `json:"srcset,omitempty"`

	DisplayedWidth  int64 `json:"displayedWidth"`
	DisplayedHeight int64 `json:"displayedHeight"`
	ClientRect      Rect  `json:"clientRect"`

	// Raw width/height attribute strings as written in the markup.
	AttributeWidth  string `json:"attributeWidth,omitempty"`
	AttributeHeight string `json:"attributeHeight,omitempty"`

	// Effective CSS sizing, populated by the source-rule resolver.
	CSSWidth  *string            `json:"cssWidth,omitempty"`
	CSSHeight *string            `json:"cssHeight,omitempty"`
	Sizing    *CSSSizingSnapshot `json:"sizing,omitempty"`

	ComputedPosition       string `json:"computedPosition,omitempty"`
	ComputedObjectFit      string `json:"computedObjectFit,omitempty"`
	ComputedImageRendering string `json:"computedImageRendering,omitempty"`

	// IsCSS marks elements whose image arrives via a CSS construct
	// (background-image and friends) rather than plain markup attributes.
	IsCSS       bool `json:"isCss"`
	IsPicture   bool `json:"isPicture"`
	InShadowDOM bool `json:"isInShadowDOM"`

	// NodePath is the devtools path used to re-address this element over
	// the remote channel ("0,HTML,1,BODY,3,IMG").
	NodePath string `json:"nodePath"`

	// Natural dimensions, populated by enrichment. nil until resolved.
	NaturalWidth  *int64 `json:"naturalWidth,omitempty"`
	NaturalHeight *int64 `json:"naturalHeight,omitempty"`

	// Network is the completed transfer that actually delivered this
	// resource, joined by URL during enrichment. nil when no eligible
	// transfer was observed.
	Network *NetworkRecord `json:"network,omitempty"`
}

// NetworkRecord is one observed network transfer. Immutable once produced
// by the harvest step.
type NetworkRecord struct {
	URL        string `json:"url"`
	MimeType   string `json:"mimeType"`
	Finished   bool   `json:"finished"`
	StatusCode int64  `json:"statusCode"`
}

// SizingProps exposes the width/height/aspect-ratio declarations of a
// single style source as raw strings. A nil field means the source never
// declared that property.
type SizingProps struct {
	Width       *string `json:"width,omitempty"`
	Height      *string `json:"height,omitempty"`
	AspectRatio *string `json:"aspectRatio,omitempty"`
}

// CSSSizingSnapshot is the per-source sizing breakdown for one element,
// kept for diagnostics alongside the reduced effective values. Inline
// declarations beat attribute-style declarations beat matched stylesheet
// rules; within matched rules a later rule overwrites an earlier one's
// value for the same property.
type CSSSizingSnapshot struct {
	Inline       *SizingProps `json:"inline,omitempty"`
	Attributes   *SizingProps `json:"attributes,omitempty"`
	MatchedRules *SizingProps `json:"matchedRules,omitempty"`
	Effective    SizingProps  `json:"effective"`
}
