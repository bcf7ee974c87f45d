package deck

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Suit represents a card suit
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

// String returns the string representation of a suit
func (s Suit) String() string {
	switch s {
	case Clubs:
		return "♣"
	case Diamonds:
		return "♦"
	case Hearts:
		return "♥"
	case Spades:
		return "♠"
	default:
		return "?"
	}
}

// Name returns the wire name of a suit (clubs, diamonds, hearts, spades)
func (s Suit) Name() string {
	switch s {
	case Clubs:
		return "clubs"
	case Diamonds:
		return "diamonds"
	case Hearts:
		return "hearts"
	case Spades:
		return "spades"
	default:
		return "unknown"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank represents a card rank
type Rank int

const (
	Two Rank = iota + 2
	Three
	Four
	Five
	Six
	Seven
	Eight
	Nine
	Ten
	Jack
	Queen
	King
	Ace
)

// String returns the string representation of a rank
func (r Rank) String() string {
	switch r {
	case Ten:
		return "10"
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace:
		return "A"
	default:
		if r >= Two && r <= Nine {
			return fmt.Sprintf("%d", int(r))
		}
		return "?"
	}
}

// Card represents a playing card. The zero value is the hidden sentinel
// used for the dealer's hole card before reveal.
type Card struct {
	Rank Rank
	Suit Suit
}

// Hidden is the face-down hole card sentinel. It has no rank or suit and
// never contributes to a hand total.
var Hidden = Card{}

// NewCard creates a new card
func NewCard(rank Rank, suit Suit) Card {
	return Card{Rank: rank, Suit: suit}
}

// IsHidden returns true for the face-down sentinel
func (c Card) IsHidden() bool {
	return c.Rank == 0
}

// String returns the string representation of a card (e.g., "A♠")
func (c Card) String() string {
	if c.IsHidden() {
		return "??"
	}
	return fmt.Sprintf("%s%s", c.Rank, c.Suit)
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// IsAce returns true if the card is an Ace
func (c Card) IsAce() bool {
	return c.Rank == Ace
}

// Value returns the blackjack value of the card. Face cards count ten,
// aces count eleven; soft-ace reduction is the hand evaluator's job.
func (c Card) Value() int {
	switch {
	case c.IsHidden():
		return 0
	case c.Rank == Ace:
		return 11
	case c.Rank >= Ten:
		return 10
	default:
		return int(c.Rank)
	}
}

type cardJSON struct {
	Rank   string `json:"rank,omitempty"`
	Suit   string `json:"suit,omitempty"`
	Hidden bool   `json:"hidden,omitempty"`
}

// MarshalJSON encodes a card for the wire. The hole card encodes as
// {"hidden":true} so its value is never exposed to observers.
func (c Card) MarshalJSON() ([]byte, error) {
	if c.IsHidden() {
		return json.Marshal(cardJSON{Hidden: true})
	}
	return json.Marshal(cardJSON{Rank: c.Rank.String(), Suit: c.Suit.Name()})
}

// UnmarshalJSON decodes a card from the wire format
func (c *Card) UnmarshalJSON(data []byte) error {
	var cj cardJSON
	if err := json.Unmarshal(data, &cj); err != nil {
		return err
	}
	if cj.Hidden {
		*c = Hidden
		return nil
	}
	rank, ok := rankNames[cj.Rank]
	if !ok {
		return fmt.Errorf("invalid rank: %q", cj.Rank)
	}
	suit, ok := suitNames[cj.Suit]
	if !ok {
		return fmt.Errorf("invalid suit: %q", cj.Suit)
	}
	*c = Card{Rank: rank, Suit: suit}
	return nil
}

var rankNames = map[string]Rank{
	"2": Two, "3": Three, "4": Four, "5": Five, "6": Six, "7": Seven,
	"8": Eight, "9": Nine, "10": Ten, "J": Jack, "Q": Queen, "K": King, "A": Ace,
}

var suitNames = map[string]Suit{
	"clubs": Clubs, "diamonds": Diamonds, "hearts": Hearts, "spades": Spades,
}

// ParseCards parses a compact card string like "AsKhTd" into cards.
// Ranks are 2-9, T, J, Q, K, A; suits are c, d, h, s. Case insensitive.
func ParseCards(s string) ([]Card, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd-length card string: %q", s)
	}
	cards := make([]Card, 0, len(s)/2)
	for i := 0; i < len(s); i += 2 {
		var rank Rank
		switch r := strings.ToUpper(s[i : i+1]); r {
		case "T":
			rank = Ten
		case "J":
			rank = Jack
		case "Q":
			rank = Queen
		case "K":
			rank = King
		case "A":
			rank = Ace
		default:
			var ok bool
			rank, ok = rankNames[r]
			if !ok {
				return nil, fmt.Errorf("invalid rank char: %q", r)
			}
		}
		var suit Suit
		switch strings.ToLower(s[i+1 : i+2]) {
		case "c":
			suit = Clubs
		case "d":
			suit = Diamonds
		case "h":
			suit = Hearts
		case "s":
			suit = Spades
		default:
			return nil, fmt.Errorf("invalid suit char: %q", s[i+1:i+2])
		}
		cards = append(cards, Card{Rank: rank, Suit: suit})
	}
	return cards, nil
}

// MustParseCards parses a card string and panics on error. Test helper.
func MustParseCards(s string) []Card {
	cards, err := ParseCards(s)
	if err != nil {
		panic(err)
	}
	return cards
}
