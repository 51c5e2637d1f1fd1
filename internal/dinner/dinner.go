// Package dinner draws random meal suggestions for the 晚餐吃什麼 lottery.
package dinner

import "math/rand"

// Category is one cuisine to draw from.
type Category struct {
	Key   string
	Name  string
	Emoji string
	Color int
	Foods []string
}

// Categories lists the cuisines in menu order.
var Categories = []Category{
	{
		Key: "rice", Name: "飯類", Emoji: "🍚", Color: 0xF5CBA7,
		Foods: []string{
			"滷肉飯", "雞肉飯", "排骨飯", "咖哩飯", "燴飯", "炒飯",
			"焢肉飯", "蝦仁飯", "鰻魚飯", "親子丼", "牛丼", "油雞飯",
		},
	},
	{
		Key: "noodle", Name: "麵類", Emoji: "🍜", Color: 0xFAD7A0,
		Foods: []string{
			"牛肉麵", "陽春麵", "乾麵", "炒麵", "義大利麵", "拉麵",
			"米粉湯", "鍋燒意麵", "麻醬麵", "餛飩麵", "刀削麵", "烏龍麵",
		},
	},
	{
		Key: "snack", Name: "小吃類", Emoji: "🥟", Color: 0xF9E79F,
		Foods: []string{
			"水餃", "鹽酥雞", "蚵仔煎", "肉圓", "臭豆腐", "潤餅",
			"胡椒餅", "蔥抓餅", "雞排", "滷味", "碗粿", "刈包",
		},
	},
	{
		Key: "hotpot", Name: "火鍋類", Emoji: "🍲", Color: 0xE59866,
		Foods: []string{
			"麻辣鍋", "涮涮鍋", "薑母鴨", "羊肉爐", "酸菜白肉鍋",
			"石頭火鍋", "臭臭鍋", "壽喜燒",
		},
	},
	{
		Key: "korean", Name: "韓式", Emoji: "🇰🇷", Color: 0xEC7063,
		Foods: []string{
			"韓式炸雞", "石鍋拌飯", "部隊鍋", "韓式烤肉", "辣炒年糕",
			"泡菜鍋", "韓式豆腐鍋", "冷麵",
		},
	},
	{
		Key: "japanese", Name: "日式", Emoji: "🇯🇵", Color: 0xAED6F1,
		Foods: []string{
			"壽司", "生魚片", "豬排定食", "天婦羅", "唐揚雞定食",
			"大阪燒", "咖哩豬排", "茶泡飯",
		},
	},
	{
		Key: "hongkong", Name: "港式", Emoji: "🇭🇰", Color: 0xD7BDE2,
		Foods: []string{
			"燒臘飯", "港式飲茶", "菠蘿油", "雲吞麵", "煲仔飯",
			"叉燒飯", "絲襪奶茶配西多士", "腸粉",
		},
	},
}

// Drinks pairs a random drink with the meal.
var Drinks = []string{
	"珍珠奶茶", "紅茶", "綠茶", "冬瓜茶", "檸檬紅茶", "烏龍茶",
	"可樂", "氣泡水", "豆漿", "白開水最健康",
}

// Sides is an optional extra dish.
var Sides = []string{
	"燙青菜", "滷蛋", "豆干", "海帶", "皮蛋豆腐", "涼拌小黃瓜", "貢丸湯",
}

// Tips close the lottery embed with a one-liner.
var Tips = []string{
	"吃飽才有力氣繼續語音！", "記得揪朋友一起吃～", "吃完記得散步消化一下",
	"不滿意的話再抽一次也可以", "今天也要好好吃飯喔",
}

// Result is one complete lottery draw.
type Result struct {
	Category Category
	Food     string
	Drink    string
	Side     string
	Tip      string
}

// FindCategory resolves a category by key.
func FindCategory(key string) (Category, bool) {
	for _, c := range Categories {
		if c.Key == key {
			return c, true
		}
	}
	return Category{}, false
}

// Draw picks a random meal from the category, plus a drink, side, and tip.
// An unknown key draws from a random category instead.
func Draw(categoryKey string) Result {
	category, ok := FindCategory(categoryKey)
	if !ok {
		category = Categories[rand.Intn(len(Categories))]
	}
	return Result{
		Category: category,
		Food:     category.Foods[rand.Intn(len(category.Foods))],
		Drink:    Drinks[rand.Intn(len(Drinks))],
		Side:     Sides[rand.Intn(len(Sides))],
		Tip:      Tips[rand.Intn(len(Tips))],
	}
}
