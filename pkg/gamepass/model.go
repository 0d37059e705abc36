// Package gamepass aggregates the purchasable game passes of a user's public
// games into one price-ordered list and serves paged views of it.
package gamepass

import "strconv"

// PassURLPrefix is joined with a pass ID to build its store page URL.
const PassURLPrefix = "https://www.roblox.com/game-pass/"

// Pass is a normalized, purchasable game pass. Price is kept as the catalog's
// JSON number; it is an integer amount of Robux in practice.
type Pass struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	GameID   int64   `json:"gameId"`
	ImageURL *string `json:"imageUrl"`
	URL      string  `json:"url"`
}

// game is one entry of the user games listing. Only the ID is used.
type game struct {
	ID int64 `json:"id"`
}

// rawPass is one entry of the game passes listing.
type rawPass struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Price       *float64 `json:"price"`
	ImageURL    string   `json:"imageUrl"`
}

// normalize maps a listing entry to a Pass. Entries without a positive price
// are not for sale and yield ok == false.
func (p rawPass) normalize(gameID int64) (Pass, bool) {
	if p.Price == nil || *p.Price <= 0 {
		return Pass{}, false
	}

	name := p.DisplayName
	if name == "" {
		name = p.Name
	}

	pass := Pass{
		ID:     p.ID,
		Name:   name,
		Price:  *p.Price,
		GameID: gameID,
		URL:    PassURL(p.ID),
	}
	if p.ImageURL != "" {
		imageURL := p.ImageURL
		pass.ImageURL = &imageURL
	}
	return pass, true
}

// PassURL returns the store page URL of a pass.
func PassURL(id int64) string {
	return PassURLPrefix + strconv.FormatInt(id, 10)
}
