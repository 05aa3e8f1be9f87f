package abm

// GraphQL documents as sent by the console's own frontend.

const extendSessionDocument = `mutation ExtendSession {
  extendSession {
    __typename
  }
}`

const devicesForPaginationDocument = `query DevicesForPagination($filters: DevicesFilterInput, $ids: [String!], $limit: Int, $search: String, $sortFields: [DevicesSortInput!], $start: Int) {
  deviceSearch: paginatedDeviceSearch(
    inputV2: {filters: $filters, ids: $ids, limit: $limit, search: $search, sortFields: $sortFields, start: $start}
  ) {
    nodes {
      ...DevicesInPagination
      __typename
    }
    sessionTag
    totalCount
    __typename
  }
}

fragment AssignedUserNameForDevice on DeviceSearchInfo {
  firstName
  middleName
  lastName
  __typename
}

fragment DevicesInPagination on Device {
  id
  name
  searchInfo {
    id
    serial
    virtualSerialNumber
    iconProductFamily
    iconProductInfo
    productFamily
    isAxmManaged
    status
    currentMdmServer {
      id
      name
      __typename
    }
    isPendingApproval
    issues
    ...AssignedUserNameForDevice
    __typename
  }
  __typename
}`

const getDeviceDetailsDocument = `query GetDeviceDetails($serial: String!) {
  device(serial: $serial) {
    id
    isAxmManaged
    isDEPReleased
    name
    activationLockStatus {
      isLocked
      lockType
      __typename
    }
    searchInfo {
      id
      serial
      deviceName
      productFamily
      iconProductFamily
      iconProductInfo
      marketingName
      status
      currentMdmServer {
        id
        name
        type
        __typename
      }
      isAxmManaged
      isAvailableForSubscription
      issues
      ...AssignedUserNameForDevice
      isPendingApproval
      virtualSerialNumber
      repairRequestId
      incidentStatus
      isApplecareEligible
      __typename
    }
    depInfo {
      serial
      purchaseInfo {
        reseller {
          id
          name
          __typename
        }
        source
        orderNumber
        __typename
      }
      createdAt
      updatedAt
      updatedByUser {
        id
        ...UserName
        __typename
      }
      deviceCapacity
      partNumber
      mdmServerUpdatedAt
      dateReleasedFromDep
      faceTimeUser {
        id
        maid
        ...UserName
        roles {
          role {
            id
            __typename
          }
          location {
            id
            __typename
          }
          __typename
        }
        __typename
      }
      hrnStatus {
        mode
        isEnabled
        __typename
      }
      productType
      __typename
    }
    mdmInfo {
      id
      lastCheckIn
      serial
      marketingName
      deviceName
      osVersion
      osBuild
      modelName
      model
      productName
      platform
      softwareUpdateEnforcementDetails {
        enforcementState
        targetVersion
        enforcementDate
        deferredUntilDate
        deliveredAt
        source
        configId
        __typename
      }
      diskUsage {
        percentUsed
        freeCapacity
        totalCapacity
        __typename
      }
      imei
      meid
      isSupervised
      isDeviceLocatorServiceEnabled
      isActivationLockSupported
      isActivationLockEnabled
      isDoNotDisturbInEffect
      isCloudBackupEnabled
      lastCloudBackupDate
      hostName
      macAddresses {
        bluetooth
        ethernet
        wifi
        __typename
      }
      phoneNumber
      carrier
      isFirewallEnabled
      isFileVaultEnabled
      virtualSerialNumber
      escrowedFileVaultKey {
        certSerialNumber
        certCommonName
        __typename
      }
      mdmLostMode {
        status
        enableRequestedAt
        disableRequestedAt
        playSoundRequestedAt
        __typename
      }
      deviceLock {
        status
        requestedAt
        pin
        __typename
      }
      deviceErase {
        status
        requestedAt
        pin
        __typename
      }
      enrollmentId
      enrollmentMode
      assignedUser {
        id
        ...UserName
        __typename
      }
      assignedApps {
        nodes {
          id
          isCustomPackage
          customPackageMetadata {
            id
            name
            supportedOperatingSystems
            iconUrlTemplate
            __typename
          }
          metadataV2 {
            name
            supportedOperatingSystems
            thumbnailTemplate
            __typename
          }
          __typename
        }
        __typename
      }
      assignedSettings {
        edges {
          node {
            id
            name
            setting {
              id
              __typename
            }
            __typename
          }
          status
          __typename
        }
        __typename
      }
      pinRequiredForEraseDevice
      __typename
    }
    subscriptions {
      edges {
        isActive
        status
        node {
          id
          plan {
            ...PlanInfo
            __typename
          }
          __typename
        }
        __typename
      }
      __typename
    }
    pendingEnrollments {
      nodes {
        serial
        enrollmentId
        certFingerprint
        os
        enrolledAt
        __typename
      }
      totalCount
      __typename
    }
    __typename
  }
}

fragment AssignedUserNameForDevice on DeviceSearchInfo {
  firstName
  middleName
  lastName
  __typename
}

fragment UserName on User {
  firstName
  middleName
  lastName
  inadequateUserType
  __typename
}

fragment PlanInfo on Plan {
  id
  type
  price
  hasStorage
  partNumber
  storageDetails {
    quotaMB
    __typename
  }
  appleCareDetails {
    incidentsPerLicense
    __typename
  }
  hasAppleCare
  devicesPerLicense
  hasDeviceManagement
  hasUserManagement
  priority
  __typename
}`

const listMdmServersDocument = `query ListMdmServers {organization {id __typename} mdmServers {nodes {id __typename} __typename}}`

const mdmServerDeletionActivitiesDocument = `query MdmServerDeletionActivities($filters: ActivitiesFilterInput, $limit: Int, $sortFields: [ActivitiesSortInput!], $start: Int) {
  activitiesSearch: paginatedActivitySearch(
    input: {filters: $filters, limit: $limit, sortFields: $sortFields, start: $start}
  ) {
    nodes {
      __typename
      id
      originalRequestJSON
      ...ActivityListItemInfo
    }
    __typename
  }
}

fragment ActivityIconInfo on Activity {
  failureCount
  operationType
  percentComplete
  status
  subStatus
  totalCount
  type
  __typename
}

fragment ActivitySubtitleInfo on Activity {
  id
  dateCompleted
  dateUpdated
  operationType
  status
  subStatus
  type
  totalCount
  completedCount
  __typename
}

fragment ActivityTitleInfo on Activity {
  id
  domainName
  operationType
  successCount
  status
  subStatus
  totalCount
  dataSource {
    id
    type
    name
    __typename
  }
  __typename
}

fragment ActivityInProgressPollingInfo on Activity {
  dateCreated
  status
  subStatus
  __typename
}

fragment ActivityListItemInfo on Activity {
  isUnread
  operationType
  status
  ...ActivityIconInfo
  ...ActivitySubtitleInfo
  ...ActivityTitleInfo
  ...ActivityInProgressPollingInfo
  __typename
}`

const assignDevicesDocument = `mutation AssignDevices($input: AssignDevicesBatchActionInput!) {
  batchAction: assignDevices(input: $input) {
    activity {
      id
      __typename
    }
    __typename
  }
}`

const checkActivityProgressDocument = `query CheckActivityProgress($id: ID!) {
  activity(id: $id) {
    id
    ...ActivityProgressInfo
    __typename
  }
}

fragment ActivityInProgressPollingInfo on Activity {
  dateCreated
  status
  subStatus
  __typename
}

fragment ActivityProgressInfo on Activity {
  isStoppable
  percentComplete
  status
  ...ActivityInProgressPollingInfo
  __typename
}`

const getLFSUStatusDocument = `query GetLFSUStatus {
  organization {
    id
    enrollmentPhase
    enrollmentProvisional
    provisionalTrialEndTime
    __typename
  }
  orgPaymentGroupAccount: orgPaymentGroupAccountV2 {
    ... on OrgPaymentGroupAccount {
      isInFreeTrialPeriod
      trialPeriodEndDate
      timeZoneId
      __typename
    }
    __typename
  }
}`
