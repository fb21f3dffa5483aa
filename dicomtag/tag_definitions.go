package dicomtag

// Tags referenced by name in code. The full table lives in data/standard.tsv.
var (
	FileMetaInformationGroupLength = Tag{Group: 0x0002, Element: 0x0000}
	FileMetaInformationVersion     = Tag{Group: 0x0002, Element: 0x0001}
	MediaStorageSOPClassUID        = Tag{Group: 0x0002, Element: 0x0002}
	MediaStorageSOPInstanceUID     = Tag{Group: 0x0002, Element: 0x0003}
	TransferSyntaxUID              = Tag{Group: 0x0002, Element: 0x0010}
	ImplementationClassUID         = Tag{Group: 0x0002, Element: 0x0012}
	ImplementationVersionName      = Tag{Group: 0x0002, Element: 0x0013}

	SpecificCharacterSet = Tag{Group: 0x0008, Element: 0x0005}
	ImageType            = Tag{Group: 0x0008, Element: 0x0008}
	SOPClassUID          = Tag{Group: 0x0008, Element: 0x0016}
	SOPInstanceUID       = Tag{Group: 0x0008, Element: 0x0018}
	StudyDate            = Tag{Group: 0x0008, Element: 0x0020}
	AccessionNumber      = Tag{Group: 0x0008, Element: 0x0050}
	QueryRetrieveLevel   = Tag{Group: 0x0008, Element: 0x0052}
	Modality             = Tag{Group: 0x0008, Element: 0x0060}
	InstitutionName      = Tag{Group: 0x0008, Element: 0x0080}
	CodeValue            = Tag{Group: 0x0008, Element: 0x0100}
	CodeMeaning          = Tag{Group: 0x0008, Element: 0x0104}

	ReferencedImageSequence  = Tag{Group: 0x0008, Element: 0x1140}
	ReferencedSOPClassUID    = Tag{Group: 0x0008, Element: 0x1150}
	ReferencedSOPInstanceUID = Tag{Group: 0x0008, Element: 0x1155}

	PatientName      = Tag{Group: 0x0010, Element: 0x0010}
	PatientID        = Tag{Group: 0x0010, Element: 0x0020}
	PatientBirthDate = Tag{Group: 0x0010, Element: 0x0030}

	StudyInstanceUID  = Tag{Group: 0x0020, Element: 0x000D}
	SeriesInstanceUID = Tag{Group: 0x0020, Element: 0x000E}
	InstanceNumber    = Tag{Group: 0x0020, Element: 0x0013}

	SamplesPerPixel = Tag{Group: 0x0028, Element: 0x0002}
	Rows            = Tag{Group: 0x0028, Element: 0x0010}
	Columns         = Tag{Group: 0x0028, Element: 0x0011}
	BitsAllocated   = Tag{Group: 0x0028, Element: 0x0100}

	OverlayData = Tag{Group: 0x6000, Element: 0x3000}
	PixelData   = Tag{Group: 0x7FE0, Element: 0x0010}

	Item                     = Tag{Group: 0xFFFE, Element: 0xE000}
	ItemDelimitationItem     = Tag{Group: 0xFFFE, Element: 0xE00D}
	SequenceDelimitationItem = Tag{Group: 0xFFFE, Element: 0xE0DD}
)
