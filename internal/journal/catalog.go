package journal

import "sync"

// Family priorities. Lower wins when families overlap.
const (
	PriorityUnsupported = 0
	PriorityTodo        = 5
	PriorityBMC         = 10
	PriorityAAAS        = 20
	PriorityTemplate    = 30
	PriorityPublisher   = 40
	PriorityScrape      = 50
)

// Templates shared by families.
const (
	VIPTemplate      = "http://{host}/content/{volume}/{issue}/{first_page}.full.pdf"
	AAASTemplate     = "http://{abbrev}.sciencemag.org/content/{volume}/{issue}/{first_page}.full.pdf"
	CellTemplate     = "http://www.cell.com/{abbrev}/pdf/{pii}.pdf"
	LancetTemplate   = "http://www.thelancet.com/pdfs/journals/{abbrev}/PII{pii}.pdf"
	NatureTemplate   = "http://www.nature.com/{abbrev}/journal/v{volume}/n{issue}/pdf/{doi_suffix}.pdf"
	SpringerTemplate = "http://link.springer.com/content/pdf/{doi}.pdf"
	WileyTemplate    = "http://onlinelibrary.wiley.com/doi/{doi}/pdf"
	KargerTemplate   = "http://www.karger.com/Article/Pdf/{doi_suffix}"
	PLoSTemplate     = "http://journals.plos.org/{abbrev}/article/file?id={doi}&type=printable"
	SciDirLanding    = "https://www.sciencedirect.com/science/article/pii/{pii}"
)

var paywallMarkers = []string{
	"purchase this article",
	"subscribe to",
	"get access",
	"log in to access",
}

var defaultTable = sync.OnceValue(func() *Table {
	return NewTable(Catalog()...)
})

// Default returns the built-in table. It is built on first use and shared.
func Default() *Table {
	return defaultTable()
}

// Catalog returns the built-in families in registration order.
func Catalog() []Family {
	natureFallback := &Rule{
		Kind:      KindRedirectRewrite,
		Publisher: "Nature Publishing Group",
		Rewrites: []Rewrite{
			{Old: "/full/", New: "/pdf/"},
			{Old: ".html", New: ".pdf"},
		},
	}

	return []Family{
		{
			Name:     "Known unsupported",
			Priority: PriorityUnsupported,
			Rule:     Rule{Kind: KindUnsupported, Note: "no English full text or journal defunct"},
			Journals: entries(
				"Zhonghua Yi Xue Za Zhi",
				"Zhonghua Er Ke Za Zhi",
				"Zhongguo Zhong Yao Za Zhi",
				"Nihon Rinsho",
				"Nihon Shokakibyo Gakkai Zasshi",
				"Vopr Onkol",
				"Ter Arkh",
				"Probl Tuberk",
				"Biochem Mol Biol Int",
				"Genet Anal Tech Appl",
				"Ann Genet",
			),
		},
		{
			Name:     "Format pending",
			Priority: PriorityTodo,
			Rule:     Rule{Kind: KindTodo, Note: "publisher known, URL format not worked out"},
			Journals: entries(
				"Acta Crystallogr D Biol Crystallogr",
				"J Biomol Struct Dyn",
				"Biochemistry (Mosc)",
				"Mol Biol (Mosk)",
				"Genetika",
				"Tsitologiia",
				"BMC Proc",
			),
		},
		{
			Name:     "BioMed Central",
			Priority: PriorityBMC,
			Rule: Rule{
				Kind:     KindRedirectRewrite,
				Rewrites: []Rewrite{{Old: "/articles/", New: "/track/pdf/"}},
			},
			Prefixes: []string{"BMC "},
			Journals: entries(
				"Genome Biol",
				"Malar J",
				"Retrovirology",
				"Virol J",
				"Breast Cancer Res",
				"Arthritis Res Ther",
				"Mol Cancer",
				"Genet Sel Evol",
				"Algorithms Mol Biol",
				"J Biomed Sci",
				"Mol Neurodegener",
				"Orphanet J Rare Dis",
			),
		},
		{
			Name:     "AAAS",
			Priority: PriorityAAAS,
			Rule:     Rule{Kind: KindForm, Template: AAASTemplate},
			Journals: []Entry{
				{Name: "Science", Abbrev: "science"},
				{Name: "Sci Signal", Abbrev: "stke"},
				{Name: "Sci Transl Med", Abbrev: "stm"},
				{Name: "Sci Adv", Abbrev: "advances"},
			},
		},
		{
			Name:     "Highwire VIP",
			Priority: PriorityTemplate,
			Rule:     Rule{Kind: KindVIP, Template: VIPTemplate},
			Journals: []Entry{
				{Name: "J Biol Chem", Host: "www.jbc.org"},
				{Name: "Proc Natl Acad Sci U S A", Host: "www.pnas.org"},
				{Name: "Mol Biol Cell", Host: "www.molbiolcell.org"},
				{Name: "J Neurosci", Host: "www.jneurosci.org"},
				{Name: "J Immunol", Host: "www.jimmunol.org"},
				{Name: "Blood", Host: "www.bloodjournal.org"},
				{Name: "Plant Cell", Host: "www.plantcell.org"},
				{Name: "Plant Physiol", Host: "www.plantphysiol.org"},
				{Name: "Genes Dev", Host: "genesdev.cshlp.org"},
				{Name: "Genome Res", Host: "genome.cshlp.org"},
				{Name: "Learn Mem", Host: "learnmem.cshlp.org"},
				{Name: "RNA", Host: "rnajournal.cshlp.org"},
				{Name: "Circulation", Host: "circ.ahajournals.org"},
				{Name: "Circ Res", Host: "circres.ahajournals.org"},
				{Name: "Hypertension", Host: "hyper.ahajournals.org"},
				{Name: "Stroke", Host: "stroke.ahajournals.org"},
				{Name: "Arterioscler Thromb Vasc Biol", Host: "atvb.ahajournals.org"},
				{Name: "J Cell Biol", Host: "jcb.rupress.org"},
				{Name: "J Exp Med", Host: "jem.rupress.org"},
				{Name: "J Gen Physiol", Host: "jgp.rupress.org"},
				{Name: "Cancer Res", Host: "cancerres.aacrjournals.org"},
				{Name: "Clin Cancer Res", Host: "clincancerres.aacrjournals.org"},
				{Name: "Mol Cancer Ther", Host: "mct.aacrjournals.org"},
				{Name: "Cancer Epidemiol Biomarkers Prev", Host: "cebp.aacrjournals.org"},
				{Name: "Endocrinology", Host: "endo.endojournals.org"},
				{Name: "Mol Endocrinol", Host: "mend.endojournals.org"},
				{Name: "J Clin Endocrinol Metab", Host: "jcem.endojournals.org"},
				{Name: "Brain", Host: "brain.oxfordjournals.org"},
				{Name: "Bioinformatics", Host: "bioinformatics.oxfordjournals.org"},
				{Name: "Nucleic Acids Res", Host: "nar.oxfordjournals.org"},
				{Name: "Hum Mol Genet", Host: "hmg.oxfordjournals.org"},
				{Name: "Mol Biol Evol", Host: "mbe.oxfordjournals.org"},
				{Name: "Carcinogenesis", Host: "carcin.oxfordjournals.org"},
				{Name: "Cereb Cortex", Host: "cercor.oxfordjournals.org"},
				{Name: "J Natl Cancer Inst", Host: "jnci.oxfordjournals.org"},
				{Name: "Am J Epidemiol", Host: "aje.oxfordjournals.org"},
			},
		},
		{
			Name:     "Cell Press",
			Priority: PriorityTemplate,
			Rule: Rule{
				Kind:        KindPIITemplate,
				Template:    CellTemplate,
				StripPII:    true,
				DenyMarkers: paywallMarkers,
			},
			Journals: []Entry{
				{Name: "Cell", Abbrev: "cell"},
				{Name: "Mol Cell", Abbrev: "molecular-cell"},
				{Name: "Neuron", Abbrev: "neuron"},
				{Name: "Curr Biol", Abbrev: "current-biology"},
				{Name: "Dev Cell", Abbrev: "developmental-cell"},
				{Name: "Cancer Cell", Abbrev: "cancer-cell"},
				{Name: "Cell Metab", Abbrev: "cell-metabolism"},
				{Name: "Immunity", Abbrev: "immunity"},
				{Name: "Structure", Abbrev: "structure"},
				{Name: "Cell Host Microbe", Abbrev: "cell-host-microbe"},
				{Name: "Cell Stem Cell", Abbrev: "cell-stem-cell"},
				{Name: "Am J Hum Genet", Abbrev: "ajhg"},
				{Name: "Biophys J", Abbrev: "biophysj"},
			},
		},
		{
			Name:     "The Lancet",
			Priority: PriorityTemplate,
			Rule: Rule{
				Kind:        KindPIITemplate,
				Template:    LancetTemplate,
				DenyMarkers: paywallMarkers,
			},
			Journals: []Entry{
				{Name: "Lancet", Abbrev: "lancet"},
				{Name: "Lancet Oncol", Abbrev: "lanonc"},
				{Name: "Lancet Neurol", Abbrev: "laneur"},
				{Name: "Lancet Infect Dis", Abbrev: "laninf"},
			},
		},
		{
			Name:     "Nature Publishing Group",
			Priority: PriorityTemplate,
			Rule: Rule{
				Kind:     KindDOITemplate,
				Template: NatureTemplate,
				Fallback: natureFallback,
			},
			Journals: []Entry{
				{Name: "Nature", Abbrev: "nature"},
				{Name: "Nat Genet", Abbrev: "ng"},
				{Name: "Nat Med", Abbrev: "nm"},
				{Name: "Nat Biotechnol", Abbrev: "nbt"},
				{Name: "Nat Cell Biol", Abbrev: "ncb"},
				{Name: "Nat Methods", Abbrev: "nmeth"},
				{Name: "Nat Struct Mol Biol", Abbrev: "nsmb"},
				{Name: "Nat Neurosci", Abbrev: "neuro"},
				{Name: "Nat Immunol", Abbrev: "ni"},
				{Name: "Oncogene", Abbrev: "onc"},
				{Name: "Eur J Hum Genet", Abbrev: "ejhg"},
				{Name: "Mol Psychiatry", Abbrev: "mp"},
				{Name: "Leukemia", Abbrev: "leu"},
				{Name: "Genes Immun", Abbrev: "gene"},
			},
		},
		{
			Name:     "Springer",
			Priority: PriorityPublisher,
			Rule:     Rule{Kind: KindDOITemplate, Template: SpringerTemplate},
			Journals: entries(
				"BMC Genomics",
				"BMC Bioinformatics",
				"Mol Genet Genomics",
				"J Mol Evol",
				"Hum Genet",
				"Immunogenetics",
				"Theor Appl Genet",
				"Curr Genet",
				"Chromosoma",
				"Diabetologia",
				"Planta",
				"Naturwissenschaften",
			),
		},
		{
			Name:     "Wiley",
			Priority: PriorityPublisher,
			Rule:     Rule{Kind: KindDOITemplate, Template: WileyTemplate},
			Journals: entries(
				"Hum Mutat",
				"Genet Epidemiol",
				"Am J Med Genet A",
				"J Cell Biochem",
				"Mol Ecol",
				"Evolution",
				"Proteomics",
				"Electrophoresis",
				"Yeast",
				"FEBS J",
				"Mol Microbiol",
				"Cancer",
			),
		},
		{
			Name:     "Karger",
			Priority: PriorityPublisher,
			Rule:     Rule{Kind: KindDOITemplate, Template: KargerTemplate},
			Journals: entries(
				"Cytogenet Genome Res",
				"Hum Hered",
				"Dermatology",
				"Neuroendocrinology",
				"Nephron",
			),
		},
		{
			Name:     "PLoS",
			Priority: PriorityPublisher,
			Rule:     Rule{Kind: KindDOITemplate, Template: PLoSTemplate},
			Journals: []Entry{
				{Name: "PLoS One", Abbrev: "plosone"},
				{Name: "PLoS Genet", Abbrev: "plosgenetics"},
				{Name: "PLoS Biol", Abbrev: "plosbiology"},
				{Name: "PLoS Comput Biol", Abbrev: "ploscompbiol"},
				{Name: "PLoS Med", Abbrev: "plosmedicine"},
				{Name: "PLoS Pathog", Abbrev: "plospathogens"},
				{Name: "PLoS Negl Trop Dis", Abbrev: "plosntds"},
			},
		},
		{
			Name:     "J-STAGE",
			Priority: PriorityPublisher,
			Rule: Rule{
				Kind:     KindRedirectRewrite,
				Rewrites: []Rewrite{{Old: "_article", New: "_pdf"}},
			},
			Journals: entries(
				"Genes Genet Syst",
				"J Reprod Dev",
				"Biosci Biotechnol Biochem",
				"J Vet Med Sci",
				"Endocr J",
				"Intern Med",
				"Circ J",
			),
		},
		{
			Name:     "Taylor & Francis",
			Priority: PriorityPublisher,
			Rule: Rule{
				Kind: KindRedirectRewrite,
				Rewrites: []Rewrite{
					{Old: "/doi/abs/", New: "/doi/pdf/"},
					{Old: "/doi/full/", New: "/doi/pdf/"},
				},
			},
			Journals: entries(
				"Hemoglobin",
				"Platelets",
				"Autophagy",
				"Cell Cycle",
				"RNA Biol",
				"Epigenetics",
				"Ann Med",
				"Acta Oncol",
				"Scand J Gastroenterol",
				"Xenobiotica",
			),
		},
		{
			Name:     "ScienceDirect",
			Priority: PriorityScrape,
			Rule: Rule{
				Kind:        KindScrape,
				Landing:     SciDirLanding,
				Selector:    "a.pdf-download-btn-link, a#pdfLink",
				DenyMarkers: paywallMarkers,
			},
			Journals: entries(
				"Gene",
				"J Mol Biol",
				"FEBS Lett",
				"Biochim Biophys Acta",
				"Neuroimage",
				"Brain Res",
				"Neurosci Lett",
				"Virology",
				"Vaccine",
				"Genomics",
				"Exp Cell Res",
				"Dev Biol",
				"Biochem Biophys Res Commun",
				"Mol Phylogenet Evol",
				"J Theor Biol",
			),
		},
		{
			Name:     "JAMA Network",
			Priority: PriorityScrape,
			Rule: Rule{
				Kind:     KindScrape,
				Selector: "a[data-article-pdf-link], a#pdf-link",
			},
			Journals: entries(
				"JAMA",
				"JAMA Intern Med",
				"JAMA Pediatr",
				"JAMA Oncol",
				"JAMA Neurol",
				"Arch Gen Psychiatry",
			),
		},
		{
			Name:     "Wolters Kluwer",
			Priority: PriorityScrape,
			Rule: Rule{
				Kind:      KindScrape,
				Selector:  "a.ejp-article-tools__list-link--pdf, a#ej-article-view-pdf",
				Paywalled: true,
			},
			Journals: entries(
				"Anesthesiology",
				"Spine (Phila Pa 1976)",
				"Transplantation",
				"Obstet Gynecol",
				"AIDS",
				"Ann Surg",
			),
		},
		{
			Name:     "eLife",
			Priority: PriorityScrape,
			Rule: Rule{
				Kind:     KindScrape,
				Selector: "a[href*='.pdf']",
			},
			Journals: entries("eLife"),
		},
	}
}

func entries(names ...string) []Entry {
	out := make([]Entry, len(names))
	for i, n := range names {
		out[i] = Entry{Name: n}
	}
	return out
}
