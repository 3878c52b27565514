package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/eventuais/eventuais/core"
	appfs "github.com/eventuais/eventuais/fs"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid roles"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"
	specialRegex      = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = "password is too common"

	commonPasswordsPath = "data/common-passwords.txt.gz"
	commonPasswords     []string
	commonPasswordsOnce sync.Once
)

// InitValidators registers the user validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslation(validate, translator, pwdNoCommonTag, pwdNoCommonText)

	mustLoadCommonPasswords()
}

func loadCommonPasswords() ([]string, error) {
	file, err := appfs.FS.Open(commonPasswordsPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening common passwords")
	}
	defer file.Close()

	gzRdr, err := gzip.NewReader(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading common passwords")
	}
	defer gzRdr.Close()

	pwds := make([]string, 0, 70000)
	scanner := bufio.NewScanner(gzRdr)
	for scanner.Scan() {
		if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
			pwds = append(pwds, strings.ToLower(pwd))
		}
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scanning common passwords")
	}
	if len(pwds) == 0 {
		return nil, errors.New("common passwords list is empty")
	}
	sort.Strings(pwds)
	return pwds, nil
}

// mustLoadCommonPasswords loads the embedded list once and panics if it cannot be read.
func mustLoadCommonPasswords() []string {
	commonPasswordsOnce.Do(func() {
		pwds, err := loadCommonPasswords()
		if err != nil {
			panic(err)
		}
		commonPasswords = pwds
	})
	return commonPasswords
}

func isCommonPassword(pwd string) bool {
	pwds := mustLoadCommonPasswords()
	lpwd := strings.ToLower(pwd)
	idx := sort.SearchStrings(pwds, lpwd)
	return idx < len(pwds) && pwds[idx] == lpwd
}

// Custom Validators

// allRolesValidation checks that provided user roles are all in AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	roles, ok := fl.Field().Interface().([]string)
	if !ok {
		return false
	}
	for _, role := range roles {
		if _, known := rolePriorities[role]; !known {
			return false
		}
	}
	return true
}

// userStructValidation does struct level validation on NewUser, UpdateUser and ResetUserPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateUsernameAndEmail(usr, sl)
		validatePassword(usr.Password, usr.Name, usr.Username, usr.Email, sl)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, usr.Name, usr.Username, usr.Email, sl)
		}
	case ResetUserPassword:
		validatePassword(usr.Password, "", "", "", sl)
	}
}

// validateUsernameAndEmail checks that one of Username or Email is provided
func validateUsernameAndEmail(nu NewUser, sl validator.StructLevel) {
	if len(nu.Username) == 0 && len(nu.Email) == 0 {
		sl.ReportError(nu.Username, "username", "Username", usernameOrEmailTag, "")
		sl.ReportError(nu.Email, "email", "Email", usernameOrEmailTag, "")
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func validatePassword(pwd, name, uname, email string, sl validator.StructLevel) {
	if tag := checkPassword(pwd, name, uname, email); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// checkPassword returns the tag of the first broken password rule, if any.
func checkPassword(pwd, name, uname, email string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	runes := []rune(pwd)
	if len(runes) < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range runes {
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	if digitCount == len(runes) {
		return pwdNotAllNumTag
	}

	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityTag
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(usrAttr, "")).QuickRatio()
	}
	if getRatio(pwd, strings.ToLower(name)) >= pwdMaxSim ||
		getRatio(pwd, uname) >= pwdMaxSim ||
		getRatio(pwd, email) >= pwdMaxSim {
		return pwdAttrSimTag
	}

	if isCommonPassword(pwd) {
		return pwdNoCommonTag
	}
	return ""
}
