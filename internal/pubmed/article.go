package pubmed

import (
	"encoding/xml"
	"strings"

	"trialscope/internal/domain"
)

type articleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	Citation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Journal struct {
				Title           string `xml:"Title"`
				ISOAbbreviation string `xml:"ISOAbbreviation"`
				Issue           struct {
					PubDate pubDate `xml:"PubDate"`
				} `xml:"JournalIssue"`
			} `xml:"Journal"`
			Title    richText `xml:"ArticleTitle"`
			Abstract struct {
				Texts []abstractText `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []struct {
				LastName       string `xml:"LastName"`
				ForeName       string `xml:"ForeName"`
				Initials       string `xml:"Initials"`
				CollectiveName string `xml:"CollectiveName"`
				Affiliations   []struct {
					Affiliation string `xml:"Affiliation"`
				} `xml:"AffiliationInfo"`
			} `xml:"AuthorList>Author"`
			Languages        []string `xml:"Language"`
			PublicationTypes []string `xml:"PublicationTypeList>PublicationType"`
			ELocationIDs     []struct {
				Type  string `xml:"EIdType,attr"`
				Value string `xml:",chardata"`
			} `xml:"ELocationID"`
		} `xml:"Article"`
		MeshHeadings []struct {
			Descriptor string `xml:"DescriptorName"`
		} `xml:"MeshHeadingList>MeshHeading"`
	} `xml:"MedlineCitation"`
	ArticleIDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type pubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

func (d pubDate) String() string {
	if d.Year == "" {
		return d.MedlineDate
	}
	parts := []string{d.Year}
	if d.Month != "" {
		parts = append(parts, d.Month)
		if d.Day != "" {
			parts = append(parts, d.Day)
		}
	}
	return strings.Join(parts, " ")
}

type abstractText struct {
	Label string `xml:"Label,attr"`
	Text  richText
}

// UnmarshalXML keeps the Label attribute and flattens inline markup.
func (a *abstractText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			a.Label = attr.Value
		}
	}
	return a.Text.UnmarshalXML(d, start)
}

// richText is element text with inline markup such as <i> or <sup> removed.
type richText string

func (r *richText) UnmarshalXML(d *xml.Decoder, _ xml.StartElement) error {
	var sb strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
	*r = richText(strings.TrimSpace(sb.String()))
	return nil
}

func (a *pubmedArticle) toRecord() domain.SearchRecord {
	art := a.Citation.Article
	rec := domain.SearchRecord{
		PMID:             strings.TrimSpace(a.Citation.PMID),
		Title:            string(art.Title),
		Journal:          art.Journal.Title,
		JournalAbbrev:    art.Journal.ISOAbbreviation,
		PublicationDate:  art.Journal.Issue.PubDate.String(),
		PublicationTypes: art.PublicationTypes,
	}
	if len(art.Languages) > 0 {
		rec.Language = art.Languages[0]
	}

	sections := make([]string, 0, len(art.Abstract.Texts))
	for _, t := range art.Abstract.Texts {
		if t.Label != "" {
			sections = append(sections, t.Label+": "+string(t.Text))
		} else {
			sections = append(sections, string(t.Text))
		}
	}
	rec.Abstract = strings.Join(sections, "\n")

	for _, au := range art.Authors {
		author := domain.Author{
			LastName:       au.LastName,
			ForeName:       au.ForeName,
			Initials:       au.Initials,
			CollectiveName: au.CollectiveName,
		}
		if len(au.Affiliations) > 0 {
			author.Affiliation = au.Affiliations[0].Affiliation
		}
		rec.Authors = append(rec.Authors, author)
	}

	for _, m := range a.Citation.MeshHeadings {
		rec.MeSHTerms = append(rec.MeSHTerms, m.Descriptor)
	}

	for _, id := range a.ArticleIDs {
		switch id.Type {
		case "doi":
			rec.DOI = strings.TrimSpace(id.Value)
		case "pmc":
			rec.PMCID = strings.TrimSpace(id.Value)
		}
	}
	if rec.DOI == "" {
		for _, e := range art.ELocationIDs {
			if e.Type == "doi" {
				rec.DOI = strings.TrimSpace(e.Value)
			}
		}
	}
	return rec
}
