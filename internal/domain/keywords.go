package domain

// EconKeywords is the fixed vocabulary used by keyword search over important articles.
var EconKeywords = []string{
	"금리", "환율", "부동산", "증시", "국제 유가", "정부 정책",
	"물가", "무역", "산업 정책", "전쟁", "중앙은행", "달러", "금",
	"고용", "실업률", "취업자 수", // labour market
	"GDP", "경제 성장", "성장률", // macro indicators
	"소비", "소비자 심리", "소매 판매", // consumption
	"공급망", "반도체", "원자재", // industry and supply
}

// Collection names used by the vector store.
const (
	CollectionImportant    = "econ_important"
	CollectionNotImportant = "econ_not_important"
)
