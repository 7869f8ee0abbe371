package offer

import (
	"encoding/json"
	"fmt"
)

// The catalog page embeds its state in a script tag as one JSON document.
// These types describe the slices of that document the pipeline reads.
// Unknown fields are ignored by encoding/json; missing fields decode to
// zero values and map to documented defaults in the parser.

// PreloadedState is the root of the embedded page state.
type PreloadedState struct {
	PageState struct {
		InitialState InitialState `json:"initialState"`
	} `json:"pageState"`
}

// InitialState holds the page components plus the analytics blocks used as
// fallbacks for product metadata.
type InitialState struct {
	Components     StateComponents `json:"components"`
	AnalyticsEvent analyticsEvent  `json:"analytics_event"`
	GTMEvent       gtmEvent        `json:"gtm_event"`
	Track          trackEvent      `json:"track"`
}

// StateComponents is the component map of the embedded state.
type StateComponents struct {
	Header     headerComponent     `json:"header"`
	Breadcrumb breadcrumbComponent `json:"breadcrumb"`
	Results    resultsComponent    `json:"results"`
	Track      trackEvent          `json:"track"`
}

type headerComponent struct {
	Title string `json:"title"`
}

type breadcrumbComponent struct {
	Categories []struct {
		Label struct {
			Text string `json:"text"`
		} `json:"label"`
	} `json:"categories"`
}

type resultsComponent struct {
	Items []SellerItem `json:"items"`
}

type analyticsEvent struct {
	PathFromRoot []struct {
		Name string `json:"name"`
	} `json:"pathFromRoot"`
}

type gtmEvent struct {
	ProductTitle string `json:"productTitle"`
}

type trackEvent struct {
	MelidataEvent struct {
		EventData struct {
			ProductTitle string      `json:"productTitle"`
			Items        []trackItem `json:"items"`
		} `json:"event_data"`
	} `json:"melidata_event"`
}

// trackItem carries the structured per-offer fulfillment flag. The
// misspelled source key is part of the page contract.
type trackItem struct {
	ItemID         string `json:"item_id"`
	HasFulfillment bool   `json:"has_full_filment"`
}

// SellerItem is one seller-offer fragment from the results list.
type SellerItem struct {
	ID         string          `json:"id"`
	Components []ItemComponent `json:"components"`
}

// ItemComponent is one typed block inside a seller item. Which fields are
// populated depends on the component id.
type ItemComponent struct {
	ID         string          `json:"id"`
	Price      *priceBlock     `json:"price,omitempty"`
	Title      titleBlock      `json:"title"`
	Seller     sellerBlock     `json:"seller"`
	SellerInfo sellerInfoBlock `json:"seller_info"`
}

type priceBlock struct {
	Value *float64 `json:"value"`
}

type titleBlock struct {
	Text   string `json:"text"`
	Values struct {
		Promise struct {
			Text string `json:"text"`
		} `json:"promise"`
	} `json:"values"`
}

type sellerBlock struct {
	Name            string `json:"name"`
	ReputationLevel string `json:"reputation_level"`
}

type sellerInfoBlock struct {
	ExtraInfo []extraInfo `json:"extra_info"`
}

type extraInfo struct {
	Subtitle string `json:"subtitle"`
}

// DecodeState parses the embedded state JSON of one page.
func DecodeState(raw []byte) (PreloadedState, error) {
	var state PreloadedState
	if err := json.Unmarshal(raw, &state); err != nil {
		return PreloadedState{}, fmt.Errorf("decode embedded state: %w", err)
	}
	return state, nil
}

// ProductName returns the catalog display name, trying the header title
// first and falling back to the analytics blocks. Empty when none is set.
func (s InitialState) ProductName() string {
	if s.Components.Header.Title != "" {
		return s.Components.Header.Title
	}
	if t := s.Track.MelidataEvent.EventData.ProductTitle; t != "" {
		return t
	}
	return s.GTMEvent.ProductTitle
}

// CategoryPath returns the breadcrumb category names from root to leaf,
// preferring the analytics path over the rendered breadcrumb.
func (s InitialState) CategoryPath() []string {
	var names []string
	for _, entry := range s.AnalyticsEvent.PathFromRoot {
		if entry.Name != "" {
			names = append(names, entry.Name)
		}
	}
	if len(names) > 0 {
		return names
	}
	for _, cat := range s.Components.Breadcrumb.Categories {
		if cat.Label.Text != "" {
			names = append(names, cat.Label.Text)
		}
	}
	return names
}

// FulfillmentByOffer builds the offer_id -> platform-fulfilled lookup from
// the page's track block.
func (s InitialState) FulfillmentByOffer() map[string]bool {
	items := s.Components.Track.MelidataEvent.EventData.Items
	out := make(map[string]bool, len(items))
	for _, item := range items {
		if item.ItemID != "" {
			out[item.ItemID] = item.HasFulfillment
		}
	}
	return out
}
