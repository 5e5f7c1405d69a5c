// Package fixtures holds placeholder display data for NFTs whose metadata
// cannot be resolved. Nothing here is read from chain.
package fixtures

import (
	"fmt"
	"hash/fnv"
)

var images = []string{
	"https://images.unsplash.com/photo-1618005182384-a83a8bd57fbe?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1541961017774-22349e4a1262?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1518709268805-4e9042af2176?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1558618666-fcd25c85cd64?w=400&h=400&fit=crop",
	"https://images.unsplash.com/photo-1578662996442-48f60103fc96?w=400&h=400&fit=crop",
}

var names = []string{
	"Cosmic Explorer",
	"Digital Art Masterpiece",
	"Pixel Warrior",
	"Abstract Dreams",
	"Neon City",
	"Mystic Forest",
	"Ocean Depths",
	"Desert Mirage",
}

var (
	rarities    = []string{"Common", "Rare", "Epic", "Legendary"}
	backgrounds = []string{"Nebula", "Abstract", "Pixel", "Neon"}
)

type Attribute struct {
	TraitType string
	Value     string
}

type NFT struct {
	Mint        string
	Name        string
	Symbol      string
	URI         string
	Image       string
	Description string
	Attributes  []Attribute
}

// Generate returns count demo NFTs numbered from 1.
func Generate(count int) []NFT {
	out := make([]NFT, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, build(fmt.Sprintf("mock-mint-%d", i+1), i))
	}
	return out
}

// ForMint returns stable placeholder data for a real mint address.
func ForMint(mint string) NFT {
	h := fnv.New32a()
	_, _ = h.Write([]byte(mint))
	return build(mint, int(h.Sum32()%1000))
}

func build(mint string, i int) NFT {
	return NFT{
		Mint:        mint,
		Name:        fmt.Sprintf("%s #%03d", names[i%len(names)], i+1),
		Symbol:      "NFT",
		URI:         fmt.Sprintf("https://example.com/metadata/%d", i+1),
		Image:       images[i%len(images)],
		Description: "A unique digital asset with special properties and rare attributes.",
		Attributes: []Attribute{
			{TraitType: "Rarity", Value: rarities[i%len(rarities)]},
			{TraitType: "Background", Value: backgrounds[(i/len(rarities))%len(backgrounds)]},
		},
	}
}
