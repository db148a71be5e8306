package archive

import "fmt"

// Category 固定的排名类别（性别×项目×年龄组），共44个，编译期确定，不入库
type Category struct {
	Code        string // 短代码，如 gs45
	Gender      string // male / female
	Type        string // singles / doubles
	AgeGroup    int    // 年龄下限：35/40/.../85
	DisplayName string // 站点展示名，如 男子45歳以上シングルス
}

// ageGroups 11个固定年龄组
var ageGroups = []int{35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85}

// Categories 全部44个类别，顺序固定：男单→男双→女单→女双，年龄升序
// 该顺序即工作队列的枚举顺序，不可改变
var Categories = buildCategories()

var categoryIndex = func() map[string]Category {
	m := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		m[c.Code] = c
	}
	return m
}()

func buildCategories() []Category {
	type group struct {
		prefix   string // 代码前缀：g=男, l=女 × s=单, d=双
		gender   string
		typ      string
		genderJP string
		typeJP   string
	}
	groups := []group{
		{"gs", "male", "singles", "男子", "シングルス"},
		{"gd", "male", "doubles", "男子", "ダブルス"},
		{"ls", "female", "singles", "女子", "シングルス"},
		{"ld", "female", "doubles", "女子", "ダブルス"},
	}

	categories := make([]Category, 0, len(groups)*len(ageGroups))
	for _, g := range groups {
		for _, age := range ageGroups {
			categories = append(categories, Category{
				Code:        fmt.Sprintf("%s%d", g.prefix, age),
				Gender:      g.gender,
				Type:        g.typ,
				AgeGroup:    age,
				DisplayName: fmt.Sprintf("%s%d歳以上%s", g.genderJP, age, g.typeJP),
			})
		}
	}
	return categories
}

// CategoryByCode 按代码查找类别
func CategoryByCode(code string) (Category, bool) {
	c, ok := categoryIndex[code]
	return c, ok
}

// IsValidCategory 类别代码是否合法
func IsValidCategory(code string) bool {
	_, ok := categoryIndex[code]
	return ok
}
