package source

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/forblgac/nijisanji-vtuber-recommend/internal/profile"
)

const maxNameRunes = 30

// Link texts on the wiki that are navigation, not creators.
var navigationTerms = []string{
	"トップ", "メニュー", "編集", "検索", "ログイン", "新規", "一覧", "最新", "ヘルプ",
}

// Group, event and unit pages share the creator namespace.
var excludedTerms = []string{
	"NIJISANJI", "NIJI", "KZHCUP", "MARIO KART", "TEKKEN", "SitR", "HEROES", "COLORS", "VOLTACTION",
}

// Kanji that suggest a feminine given name.
var feminineNameChars = []string{"美", "華", "花", "姫", "音", "愛", "香", "桜", "月", "星"}

type keywordRule struct {
	label    string
	keywords []string
}

var streamingGenreRules = []keywordRule{
	{"雑談", []string{"雑談", "フリートーク"}},
	{"ゲーム", []string{"ゲーム"}},
	{"歌", []string{"歌枠", "歌唱", "歌"}},
	{"ASMR", []string{"ASMR"}},
	{"お絵描き", []string{"お絵描き", "イラスト"}},
	{"企画", []string{"企画"}},
}

var gameGenreRules = []keywordRule{
	{"FPS", []string{"FPS", "Apex", "VALORANT"}},
	{"RPG", []string{"RPG", "ロールプレイング"}},
	{"アクション", []string{"アクション"}},
	{"パズル", []string{"パズル"}},
	{"シミュレーション", []string{"シミュレーション"}},
	{"格闘", []string{"格闘", "ファイティング"}},
	{"ホラー", []string{"ホラー"}},
	{"音ゲー", []string{"音ゲー", "リズムゲーム"}},
}

var personalityRules = []keywordRule{
	{"元気", []string{"元気", "明るい"}},
	{"おっとり", []string{"おっとり", "のんびり"}},
	{"優しい", []string{"優しい", "癒し"}},
	{"クール", []string{"クール", "冷静"}},
	{"面白い", []string{"面白い", "ユニーク"}},
	{"知的", []string{"知的", "博識"}},
}

var (
	datePattern       = regexp.MustCompile(`(\d{4})\s*[年/.\-]\s*(\d{1,2})\s*[月/.\-]\s*(\d{1,2})`)
	subscriberPattern = regexp.MustCompile(`登録者(?:数)?\s*[:：]?\s*([0-9][0-9,]*)\s*(万)?`)
)

// ParseListPage extracts creator names from links under basePath.
func ParseListPage(body io.Reader, basePath string) ([]string, error) {
	tokenizer := html.NewTokenizer(body)
	var names []string
	seen := make(map[string]bool)

	inLink := false
	var linkText strings.Builder

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() == io.EOF {
				return names, nil
			}
			return nil, tokenizer.Err()

		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data != "a" {
				continue
			}
			for _, attr := range token.Attr {
				if attr.Key == "href" && isCreatorLink(attr.Val, basePath) {
					inLink = true
					linkText.Reset()
				}
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "a" && inLink {
				inLink = false
				name := cleanText(linkText.String())
				if isCreatorName(name) && !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}

		case html.TextToken:
			if inLink {
				linkText.WriteString(tokenizer.Token().Data)
			}
		}
	}
}

// ParseDetailPage builds a raw record from a creator page.
func ParseDetailPage(body io.Reader, name string) (*profile.Record, error) {
	tokenizer := html.NewTokenizer(body)
	rec := &profile.Record{Name: name}

	var textBuilder, cell, para strings.Builder
	var row []string
	inScript, inStyle, inCell, inPara := false, false, false, false

	for {
		tokenType := tokenizer.Next()

		switch tokenType {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				return nil, tokenizer.Err()
			}
			text := cleanText(textBuilder.String())
			if text == "" {
				return nil, fmt.Errorf("empty page for %s", name)
			}
			inferFromText(rec, text)
			if rec.Gender == "" {
				rec.Gender = InferGender(name)
			}
			return rec, nil

		case html.StartTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			case "tr":
				row = row[:0]
			case "th", "td":
				inCell = true
				cell.Reset()
			case "p":
				if rec.Description == "" {
					inPara = true
					para.Reset()
				}
			}

		case html.EndTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			case "th", "td":
				if inCell {
					row = append(row, cleanText(cell.String()))
					inCell = false
				}
			case "tr":
				if len(row) >= 2 {
					applyTableRow(rec, row[0], row[1])
				}
			case "p":
				if inPara {
					inPara = false
					desc := cleanText(para.String())
					if desc != "" && utf8.RuneCountInString(desc) < 500 {
						rec.Description = desc
					}
				}
			}

		case html.TextToken:
			if inScript || inStyle {
				continue
			}
			data := tokenizer.Token().Data
			if inCell {
				cell.WriteString(data)
			}
			if inPara {
				para.WriteString(data)
			}
			if text := strings.TrimSpace(data); text != "" {
				textBuilder.WriteString(text + " ")
			}
		}
	}
}

func applyTableRow(rec *profile.Record, key, value string) {
	switch {
	case strings.Contains(key, "初配信日") || strings.Contains(key, "デビュー日"):
		if rec.DebutDate == "" {
			rec.DebutDate = parseDate(value)
		}
	case strings.Contains(key, "性別"):
		switch {
		case strings.Contains(value, "女") || strings.Contains(value, "♀"):
			rec.Gender = profile.GenderFemale
		case strings.Contains(value, "男") || strings.Contains(value, "♂"):
			rec.Gender = profile.GenderMale
		}
	}
}

func inferFromText(rec *profile.Record, text string) {
	rec.StreamingGenres = matchRules(streamingGenreRules, text)
	rec.GameGenres = matchRules(gameGenreRules, text)
	rec.PersonalityTraits = matchRules(personalityRules, text)

	if m := subscriberPattern.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
		if err == nil {
			if m[2] != "" {
				n *= 10000
			}
			rec.SubscriberCount = n
		}
	}
}

func matchRules(rules []keywordRule, text string) []string {
	var out []string
	for _, rule := range rules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				out = append(out, rule.label)
				break
			}
		}
	}
	return out
}

func parseDate(value string) string {
	m := datePattern.FindStringSubmatch(value)
	if m == nil {
		return ""
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("%s-%02d-%02d", m[1], month, day)
}

// InferGender guesses from the name; empty means unknown.
func InferGender(name string) string {
	for _, c := range feminineNameChars {
		if strings.Contains(name, c) {
			return profile.GenderFemale
		}
	}
	return ""
}

func isCreatorLink(href, basePath string) bool {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return false
	}
	if !strings.HasPrefix(u.Path, basePath) {
		return false
	}
	rest := strings.TrimPrefix(u.Path, basePath)
	return rest != "" && !strings.Contains(rest, "::")
}

func isCreatorName(name string) bool {
	if name == "" || utf8.RuneCountInString(name) >= maxNameRunes {
		return false
	}
	for _, term := range navigationTerms {
		if strings.Contains(name, term) {
			return false
		}
	}
	upper := strings.ToUpper(name)
	for _, term := range excludedTerms {
		if strings.Contains(upper, strings.ToUpper(term)) {
			return false
		}
	}
	for _, r := range name {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}

// cleanText removes excessive whitespace
func cleanText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
