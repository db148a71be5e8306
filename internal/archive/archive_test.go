package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategories(t *testing.T) {
	require.Len(t, Categories, 44)

	// 顺序固定：男单→男双→女单→女双，各组内年龄升序
	assert.Equal(t, "gs35", Categories[0].Code)
	assert.Equal(t, "gs85", Categories[10].Code)
	assert.Equal(t, "gd35", Categories[11].Code)
	assert.Equal(t, "ls35", Categories[22].Code)
	assert.Equal(t, "ld85", Categories[43].Code)

	// 代码全局唯一
	seen := make(map[string]bool)
	for _, c := range Categories {
		assert.False(t, seen[c.Code], "类别代码重复: %s", c.Code)
		seen[c.Code] = true
	}
}

func TestCategoryDisplayName(t *testing.T) {
	c, ok := CategoryByCode("gs45")
	require.True(t, ok)
	assert.Equal(t, "男子45歳以上シングルス", c.DisplayName)
	assert.Equal(t, "male", c.Gender)
	assert.Equal(t, "singles", c.Type)
	assert.Equal(t, 45, c.AgeGroup)

	c, ok = CategoryByCode("ld70")
	require.True(t, ok)
	assert.Equal(t, "女子70歳以上ダブルス", c.DisplayName)
}

func TestIsValidCategory(t *testing.T) {
	assert.True(t, IsValidCategory("gs35"))
	assert.True(t, IsValidCategory("ld85"))
	assert.False(t, IsValidCategory("gs30")) // 年龄组不存在
	assert.False(t, IsValidCategory("xs45")) // 前缀不存在
	assert.False(t, IsValidCategory(""))
}

func TestGeneratePeriods(t *testing.T) {
	periods := GeneratePeriods(2004, 1, &Period{Year: 2004, Month: 12})
	require.Len(t, periods, 12)
	assert.Equal(t, Period{Year: 2004, Month: 1}, periods[0])
	assert.Equal(t, Period{Year: 2004, Month: 12}, periods[11])

	// 跨年递增
	periods = GeneratePeriods(2023, 11, &Period{Year: 2024, Month: 2})
	require.Len(t, periods, 4)
	assert.Equal(t, Period{Year: 2023, Month: 12}, periods[1])
	assert.Equal(t, Period{Year: 2024, Month: 1}, periods[2])

	// 起点晚于终点则为空
	periods = GeneratePeriods(2024, 6, &Period{Year: 2024, Month: 5})
	assert.Empty(t, periods)

	// end为nil时到当前月
	periods = GeneratePeriods(2004, 1, nil)
	assert.NotEmpty(t, periods)
	assert.Equal(t, Period{Year: 2004, Month: 1}, periods[0])
}

func TestPeriodURL(t *testing.T) {
	p := Period{Year: 2004, Month: 1}
	assert.Equal(t, "200401vet", p.URLPath())
	assert.Equal(t, "2004年1月", p.DisplayName())
	assert.Equal(t,
		"http://archives.jta-tennis.or.jp/rankings/200401vet/page.php?cid=gs45",
		ArchiveURL("http://archives.jta-tennis.or.jp", p, "gs45"))
	assert.Equal(t,
		"http://archives.jta-tennis.or.jp/rankings/vet/page.php?cid=gs45",
		LatestURL("http://archives.jta-tennis.or.jp", "gs45"))
}

func TestPeriodEndDate(t *testing.T) {
	// 闰年2月
	assert.Equal(t, 29, Period{Year: 2024, Month: 2}.EndDate().Day())
	assert.Equal(t, 28, Period{Year: 2023, Month: 2}.EndDate().Day())
	assert.Equal(t, 31, Period{Year: 2024, Month: 12}.EndDate().Day())
	assert.Equal(t, 1, Period{Year: 2024, Month: 3}.StartDate().Day())
}
