package gemini

import (
	"fmt"

	"github.com/erazemk/zapuscina/internal/assist"
)

// TagsPrompt asks for resale search keywords given what staff already know.
func TagsPrompt(tc assist.TagContext) string {
	return fmt.Sprintf(`Analyze the item in the image. Based on its name (%q), maker (%q), category (%q), and description (%q), suggest 5-10 relevant tags for categorizing it for resale in an online store. Focus on keywords customers would search for.`,
		tc.Name, tc.Maker, tc.Category, tc.Description)
}

// IdentifyPrompt asks for a search-grounded appraisal returned as raw JSON.
const IdentifyPrompt = `Act as a resale appraiser. Identify this item as precisely as possible using the Google Search tool.

1. Read every visible letter, number, brand name or serial code on the object and include any you find in your search.
2. If no text is visible, describe the exact shape, material and pattern or era, and search for that profile.
3. Prefer sold listings on eBay, Poshmark, Mercari or 1stDibs to find the exact used or vintage match.

Report:
- "name": the precise listing title.
- "maker": the brand or artist.
- "description": three or four professional sentences on what the item is, its likely era and origin, and what drives its value.
- "category": one of Home Goods, Apparel, Electronics, Collectibles, Other.
- "condition": one of New, Like New, Good, Fair, Poor.
- "tags": 5-8 specific keywords.
- "price": estimated market value as a number, based on comparable sold listings.

Return only raw JSON with no markdown fences. Escape every double quote inside strings.

{
  "name": "String",
  "maker": "String",
  "description": "String",
  "category": "String",
  "condition": "String",
  "tags": ["String"],
  "price": 0
}`
